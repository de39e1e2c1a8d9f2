/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package supervisor

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehonix-Team/xywatchd/internal/reaper"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// TestShutdownQuitsAndJoinsEveryWorker drives the teardown half of the
// lifecycle without the netlink ingestor (which needs a privileged
// socket): with two live workers, shutdown must write QUIT to both
// records, post both wakes, and return only after both workers have
// exited.
func TestShutdownQuitsAndJoinsEveryWorker(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	core := watch.NewSupervisor(t.TempDir(), 1, entry)
	core.AddWatch(&watch.Spec{Name: "web", Start: []string{"/bin/true"}})
	core.AddWatch(&watch.Spec{Name: "worker", Start: []string{"/bin/true"}})

	s := New(Options{Core: core, Log: entry})
	s.reaper = reaper.New(entry)
	go s.reaper.Run()
	for _, r := range core.Records() {
		w := watch.NewWorker(r)
		s.workers = append(s.workers, w)
		go w.Run()
	}

	done := make(chan struct{})
	go func() {
		s.shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	for _, r := range core.Records() {
		assert.Equal(t, watch.StateQuit, r.State())
	}
	for _, w := range s.workers {
		select {
		case <-w.Done():
		default:
			t.Fatal("shutdown returned before a worker exited")
		}
	}
	require.Len(t, s.workers, 2)
}
