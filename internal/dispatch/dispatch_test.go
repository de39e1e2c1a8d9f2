/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package dispatch

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Nehonix-Team/xywatchd/internal/procevents"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

func testCore(t *testing.T) (*watch.Supervisor, *watch.Record) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	sup := watch.NewSupervisor(t.TempDir(), 1, logrus.NewEntry(log))
	rec := sup.AddWatch(&watch.Spec{Name: "w", Start: []string{"/bin/true"}})
	rec.Wake.Wait() // consume the construction-seeded post
	return sup, rec
}

// wakePosted reports whether rec's wake has a pending post, consuming it
// if so.
func wakePosted(rec *watch.Record) bool {
	done := make(chan struct{})
	go func() {
		rec.Wake.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(50 * time.Millisecond):
		// Release the helper goroutine with a post of our own so it does
		// not stay blocked and consume a later, real post.
		rec.Wake.Post()
		<-done
		return false
	}
}

func TestEventExitWritesStoppedAndPosts(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	rec.SetState(watch.StateRunning)

	d := New(sup, sup.Log)
	d.Event(procevents.Event{Kind: procevents.KindExit, PID: 4900, ExitSignal: 9})

	require.Equal(t, watch.StateStopped, rec.State())
	require.True(t, wakePosted(rec), "an EXIT for a tracked pid must post the wake")
}

func TestEventDuplicateExitPostsOnce(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	rec.SetState(watch.StateRunning)

	d := New(sup, sup.Log)
	d.Event(procevents.Event{Kind: procevents.KindExit, PID: 4900})
	d.Event(procevents.Event{Kind: procevents.KindExit, PID: 4900})
	d.Event(procevents.Event{Kind: procevents.KindExit, PID: 4900})

	require.True(t, wakePosted(rec))
	require.False(t, wakePosted(rec), "a redelivered EXIT within the dedupe window must not post again")
}

func TestEventForkConfirmsOwnChildOnly(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4821)
	rec.SetState(watch.StateStarting)

	d := New(sup, sup.Log)

	// A fork whose parent pid matches no record is a miss.
	d.Event(procevents.Event{Kind: procevents.KindFork, PID: 9999})
	require.Equal(t, watch.StateStarting, rec.State())
	require.False(t, wakePosted(rec))

	// A fork whose parent pid is the tracked pid confirms liveness.
	d.Event(procevents.Event{Kind: procevents.KindFork, PID: 4821})
	require.Equal(t, watch.StateRunning, rec.State())
	require.True(t, wakePosted(rec))
}

func TestPollResultIsIdempotent(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	rec.SetState(watch.StateRunning)

	d := New(sup, sup.Log)

	d.PollResult(4900, true)
	require.Equal(t, watch.StateRunning, rec.State())
	require.False(t, wakePosted(rec), "a poll confirming the recorded state must not post")

	d.PollResult(4900, false)
	require.Equal(t, watch.StateStopped, rec.State())
	require.True(t, wakePosted(rec))

	d.PollResult(4900, false)
	require.False(t, wakePosted(rec))
}

func TestPollResultDoesNotCancelStopping(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	rec.SetState(watch.StateStopping)

	d := New(sup, sup.Log)

	// The child is still alive while its termination is in flight; the
	// liveness confirmation must not flip the record back to RUNNING.
	d.PollResult(4900, true)
	require.Equal(t, watch.StateStopping, rec.State())
	require.False(t, wakePosted(rec))

	// Once the child is gone the poll drives the stop to completion.
	d.PollResult(4900, false)
	require.Equal(t, watch.StateStopped, rec.State())
	require.True(t, wakePosted(rec))
}

func TestDispatchNeverOverridesQuit(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	rec.SetState(watch.StateQuit)

	d := New(sup, sup.Log)

	d.Event(procevents.Event{Kind: procevents.KindExit, PID: 4900})
	require.Equal(t, watch.StateQuit, rec.State())
	require.False(t, wakePosted(rec))

	d.PollResult(4900, true)
	d.PollResult(4900, false)
	require.Equal(t, watch.StateQuit, rec.State())
	require.False(t, wakePosted(rec))
}

func TestPollResultUnknownPIDIsNoop(t *testing.T) {
	sup, rec := testCore(t)
	rec.SetPID(4900)
	before := rec.State()

	d := New(sup, sup.Log)
	d.PollResult(1234, false)

	require.Equal(t, before, rec.State())
	require.False(t, wakePosted(rec))
}
