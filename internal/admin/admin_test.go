/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package admin

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

func startServer(t *testing.T, core *watch.Supervisor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin.sock")

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := New(core, path, logrus.NewEntry(log))
	go srv.Run()
	t.Cleanup(srv.Stop)

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, time.Second, 5*time.Millisecond)
	return path
}

func roundTrip(t *testing.T, path, cmd string) []string {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintln(conn, cmd)

	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if line == "OK" || strings.HasPrefix(line, "ERR") {
			break
		}
	}
	return lines
}

func testCore(t *testing.T) *watch.Supervisor {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	sup := watch.NewSupervisor(t.TempDir(), 1, logrus.NewEntry(log))
	sup.AddWatch(&watch.Spec{Name: "web", Start: []string{"/bin/true"}})
	sup.AddWatch(&watch.Spec{Name: "worker", Start: []string{"/bin/true"}})
	for _, r := range sup.Records() {
		r.Wake.Wait() // consume the construction-seeded post
	}
	return sup
}

func TestStatusListsEveryWatch(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	lines := roundTrip(t, path, "status")
	require.Len(t, lines, 3)
	assert.Equal(t, "web\tUNMONITORED\t0", lines[0])
	assert.Equal(t, "worker\tUNMONITORED\t0", lines[1])
	assert.Equal(t, "OK", lines[2])
}

func TestQuitOne(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	lines := roundTrip(t, path, "quit web")
	require.Equal(t, []string{"OK"}, lines)

	assert.Equal(t, watch.StateQuit, core.RecordByName("web").State())
	assert.Equal(t, watch.StateUnmonitored, core.RecordByName("worker").State())
}

func TestQuitAll(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	lines := roundTrip(t, path, "quit all")
	require.Equal(t, []string{"OK"}, lines)
	for _, r := range core.Records() {
		assert.Equal(t, watch.StateQuit, r.State())
	}
}

func TestRestartFromStoppedPostsStarting(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	r := core.RecordByName("web")
	r.SetState(watch.StateStopped)

	lines := roundTrip(t, path, "restart web")
	require.Equal(t, []string{"OK"}, lines)
	assert.Equal(t, watch.StateStarting, r.State())
}

func TestRestartFromRunningPostsStopping(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	r := core.RecordByName("web")
	r.SetState(watch.StateRunning)

	lines := roundTrip(t, path, "restart web")
	require.Equal(t, []string{"OK"}, lines)
	assert.Equal(t, watch.StateStopping, r.State())
}

func TestUnknownWatchAndCommand(t *testing.T) {
	core := testCore(t)
	path := startServer(t, core)

	lines := roundTrip(t, path, "restart nope")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ERR"))

	lines = roundTrip(t, path, "frobnicate")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ERR"))
}
