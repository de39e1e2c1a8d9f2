/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package diagnostics backs `xywatchd diag host`: a read-only host
// resource snapshot, scoped to what an operator needs when deciding
// whether a watch's crash loop is environmental (OOM, disk full,
// thermal throttling) or a problem with the watch itself.
package diagnostics

import (
	"runtime"
	"time"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot is a point-in-time view of host resources.
type HostSnapshot struct {
	Hostname      string        `json:"hostname"`
	OS            string        `json:"os"`
	KernelVersion string        `json:"kernel_version"`
	Architecture  string        `json:"architecture"`
	CPUCount      int           `json:"cpu_count"`
	CPUModel      string        `json:"cpu_model"`
	Uptime        time.Duration `json:"uptime"`
	LoadAverage   [3]float64    `json:"load_average"`
	MemoryTotal   uint64        `json:"memory_total"`
	MemoryUsed    uint64        `json:"memory_used"`
	Batteries     []BatteryInfo `json:"batteries,omitempty"`
}

// BatteryInfo is one power source's charge state.
type BatteryInfo struct {
	Index       int     `json:"index"`
	State       string  `json:"state"`
	ChargePct   float64 `json:"charge_pct"`
	DesignWh    float64 `json:"design_wh"`
	FullWh      float64 `json:"full_wh"`
}

// Snapshot gathers a HostSnapshot. Only a host.Info failure is returned
// as an error; the other probes degrade silently (zero value) rather
// than failing the whole snapshot, since a single missing subsystem
// (e.g. no battery present) is expected, not an error worth aborting a
// diagnostics report over.
func Snapshot() (HostSnapshot, error) {
	hInfo, err := host.Info()
	if err != nil {
		return HostSnapshot{}, err
	}
	vMem, _ := mem.VirtualMemory()
	lAvg, _ := load.Avg()
	cInfos, _ := cpu.Info()

	var cpuModel string
	if len(cInfos) > 0 {
		cpuModel = cInfos[0].ModelName
	}

	snap := HostSnapshot{
		Hostname:      hInfo.Hostname,
		OS:            hInfo.OS,
		KernelVersion: hInfo.KernelVersion,
		Architecture:  runtime.GOARCH,
		CPUCount:      runtime.NumCPU(),
		CPUModel:      cpuModel,
		Uptime:        time.Duration(hInfo.Uptime) * time.Second,
	}
	if vMem != nil {
		snap.MemoryTotal = vMem.Total
		snap.MemoryUsed = vMem.Used
	}
	if lAvg != nil {
		snap.LoadAverage = [3]float64{lAvg.Load1, lAvg.Load5, lAvg.Load15}
	}

	if bats, err := battery.GetAll(); err == nil {
		for i, b := range bats {
			pct := 0.0
			if b.Full > 0 {
				pct = b.Current / b.Full * 100
			}
			snap.Batteries = append(snap.Batteries, BatteryInfo{
				Index:     i,
				State:     b.State.String(),
				ChargePct: pct,
				DesignWh:  b.Design,
				FullWh:    b.Full,
			})
		}
	}

	return snap, nil
}
