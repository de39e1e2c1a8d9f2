//go:build linux

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package procevents

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds a full netlink+cn_msg+proc_event message the way the
// kernel would deliver one, with the given what value and union bytes.
func frame(what uint32, union []byte) []byte {
	buf := make([]byte, nlMsgHdrLen+cnMsgHdrLen+16+len(union))
	body := buf[nlMsgHdrLen+cnMsgHdrLen:]
	binary.LittleEndian.PutUint32(body[0:4], what)
	copy(body[16:], union)
	return buf
}

func TestDecodeEventFork(t *testing.T) {
	union := make([]byte, 16)
	binary.LittleEndian.PutUint32(union[0:4], 4821)  // parent pid
	binary.LittleEndian.PutUint32(union[4:8], 4821)  // parent tgid
	binary.LittleEndian.PutUint32(union[8:12], 4900) // child pid
	binary.LittleEndian.PutUint32(union[12:16], 4900)

	ev, ok := decodeEvent(frame(procEventFork, union))
	require.True(t, ok)
	assert.Equal(t, KindFork, ev.Kind)
	assert.Equal(t, 4821, ev.PID, "FORK must surface the parent pid as the affected pid")
}

func TestDecodeEventExit(t *testing.T) {
	union := make([]byte, 16)
	binary.LittleEndian.PutUint32(union[0:4], 4900) // exiting pid
	binary.LittleEndian.PutUint32(union[4:8], 4900) // tgid
	binary.LittleEndian.PutUint32(union[8:12], 0)   // exit code
	binary.LittleEndian.PutUint32(union[12:16], 15) // exit signal

	ev, ok := decodeEvent(frame(procEventExit, union))
	require.True(t, ok)
	assert.Equal(t, KindExit, ev.Kind)
	assert.Equal(t, 4900, ev.PID)
	assert.Equal(t, 0, ev.ExitCode)
	assert.Equal(t, 15, ev.ExitSignal)
}

func TestDecodeEventIgnoresOtherKinds(t *testing.T) {
	const procEventExec = 0x00000002
	ev, ok := decodeEvent(frame(procEventExec, make([]byte, 16)))
	require.True(t, ok)
	assert.Equal(t, 0, ev.PID, "unhandled event kinds must yield affected pid 0 so no handler runs")
}

func TestDecodeEventRejectsShortBuffer(t *testing.T) {
	_, ok := decodeEvent(make([]byte, nlMsgHdrLen+cnMsgHdrLen))
	assert.False(t, ok)

	// A recognized kind whose union is truncated is also rejected rather
	// than read out of bounds.
	short := frame(procEventExit, make([]byte, 16))
	_, ok = decodeEvent(short[:len(short)-8])
	assert.False(t, ok)
}

func TestEncodeSubscribeFraming(t *testing.T) {
	msg := encodeSubscribe(1234, procCnMcastListen)
	require.Len(t, msg, nlMsgHdrLen+cnMsgHdrLen+4)

	assert.Equal(t, uint32(len(msg)), binary.LittleEndian.Uint32(msg[0:4]), "nlmsghdr.len covers the whole message")
	assert.Equal(t, uint16(nlmsgDone), binary.LittleEndian.Uint16(msg[4:6]))
	assert.Equal(t, uint32(1234), binary.LittleEndian.Uint32(msg[12:16]), "nlmsghdr.pid tags the subscription with the supervisor pid")

	cn := msg[nlMsgHdrLen:]
	assert.Equal(t, uint32(cnIdxProc), binary.LittleEndian.Uint32(cn[0:4]))
	assert.Equal(t, uint32(cnValProc), binary.LittleEndian.Uint32(cn[4:8]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(cn[16:18]), "cn_msg.len is the op payload size")
	assert.Equal(t, uint32(procCnMcastListen), binary.LittleEndian.Uint32(cn[20:24]))
}
