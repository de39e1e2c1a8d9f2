//go:build linux

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package procevents

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// cn_proc wire constants (linux/connector.h, linux/cn_proc.h). x/sys/unix
// does not export these; they are specific to the process connector,
// not general netlink, so they are declared here the way most
// proc-connector clients outside the kernel tree do.
const (
	cnIdxProc = 0x1
	cnValProc = 0x1

	procCnMcastListen = 1
	procCnMcastIgnore = 2

	procEventFork = 0x00000001
	procEventExit = 0x80000000

	nlmsgDone = 0x3

	cnMsgHdrLen   = 20 // cn_msg: id(8) + seq(4) + ack(4) + len(2) + flags(2)
	nlMsgHdrLen   = 16 // nlmsghdr: len(4) + type(2) + flags(2) + seq(4) + pid(4)
	recvBufferLen = nlMsgHdrLen + cnMsgHdrLen + 256 // headers + proc_event, generously sized
)

// Ingestor is the single-threaded event loop. Construct with New, then
// run it on the supervisor's main goroutine via Run.
type Ingestor struct {
	selfPID int
	handler Handler
	log     *logrus.Entry

	sockFD     int
	epFD       int
	shutdownFD int

	shutdown int32 // atomic; set before the shutdown eventfd is written
}

// New opens and subscribes the netlink socket and builds the epoll set
// for multiplexing it with the shutdown eventfd. It does not start the
// loop.
func New(selfPID int, handler Handler, log *logrus.Entry) (*Ingestor, error) {
	sockFD, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM, unix.NETLINK_CONNECTOR)
	if err != nil {
		return nil, fmt.Errorf("open netlink connector socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: uint32(selfPID), Groups: cnIdxProc}
	if err := unix.Bind(sockFD, addr); err != nil {
		unix.Close(sockFD)
		return nil, fmt.Errorf("bind netlink connector socket: %w", err)
	}

	in := &Ingestor{selfPID: selfPID, handler: handler, log: log, sockFD: sockFD}

	if err := in.subscribe(procCnMcastListen); err != nil {
		unix.Close(sockFD)
		return nil, err
	}

	if err := unix.SetNonblock(sockFD, true); err != nil {
		unix.Close(sockFD)
		return nil, fmt.Errorf("set netlink socket non-blocking: %w", err)
	}

	epFD, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(sockFD)
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	if err := unix.EpollCtl(epFD, unix.EPOLL_CTL_ADD, sockFD, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(sockFD)}); err != nil {
		unix.Close(epFD)
		unix.Close(sockFD)
		return nil, fmt.Errorf("epoll_ctl add netlink fd: %w", err)
	}

	shutdownFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epFD)
		unix.Close(sockFD)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	if err := unix.EpollCtl(epFD, unix.EPOLL_CTL_ADD, shutdownFD, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(shutdownFD)}); err != nil {
		unix.Close(shutdownFD)
		unix.Close(epFD)
		unix.Close(sockFD)
		return nil, fmt.Errorf("epoll_ctl add shutdown fd: %w", err)
	}

	in.epFD = epFD
	in.shutdownFD = shutdownFD
	return in, nil
}

func (in *Ingestor) subscribe(op uint32) error {
	msg := encodeSubscribe(in.selfPID, op)
	dest := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(in.sockFD, msg, 0, dest); err != nil {
		return fmt.Errorf("send proc connector subscribe op=%d: %w", op, err)
	}
	return nil
}

func encodeSubscribe(selfPID int, op uint32) []byte {
	total := nlMsgHdrLen + cnMsgHdrLen + 4
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint16(buf[4:6], nlmsgDone)
	binary.LittleEndian.PutUint16(buf[6:8], 0) // flags
	binary.LittleEndian.PutUint32(buf[8:12], 0) // seq
	binary.LittleEndian.PutUint32(buf[12:16], uint32(selfPID))

	cn := buf[nlMsgHdrLen:]
	binary.LittleEndian.PutUint32(cn[0:4], cnIdxProc)
	binary.LittleEndian.PutUint32(cn[4:8], cnValProc)
	binary.LittleEndian.PutUint32(cn[8:12], 0) // seq
	binary.LittleEndian.PutUint32(cn[12:16], 0) // ack
	binary.LittleEndian.PutUint16(cn[16:18], 4) // len (payload)
	binary.LittleEndian.PutUint16(cn[18:20], 0) // flags

	binary.LittleEndian.PutUint32(buf[nlMsgHdrLen+cnMsgHdrLen:], op)
	return buf
}

// RequestShutdown is safe to call from a signal-handling goroutine (or
// anywhere else). It sets the shutdown flag and wakes the epoll loop by
// writing to the eventfd, unblocking Run within one epoll_wait cycle.
func (in *Ingestor) RequestShutdown() {
	atomic.StoreInt32(&in.shutdown, 1)
	var v uint64 = 1
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	if _, err := unix.Write(in.shutdownFD, b); err != nil {
		// Write errors on the shutdown descriptor are logged and shutdown
		// proceeds anyway; the loop only notices via a future readiness
		// event.
		in.log.WithError(err).Warn("failed to write shutdown eventfd")
	}
}

// Run blocks, dispatching decoded events to the handler, until shutdown
// is requested or a non-recoverable error occurs. It
// unsubscribes and releases all descriptors before returning.
func (in *Ingestor) Run() error {
	defer in.cleanup()

	events := make([]unix.EpollEvent, 4)
	buf := make([]byte, recvBufferLen)

	for {
		n, err := unix.EpollWait(in.epFD, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case in.shutdownFD:
				in.drainShutdownFD()
				if atomic.LoadInt32(&in.shutdown) == 1 {
					return nil
				}
			case in.sockFD:
				if done, err := in.recvOne(buf); err != nil {
					return err
				} else if done {
					return nil
				}
			}
		}
	}
}

func (in *Ingestor) drainShutdownFD() {
	b := make([]byte, 8)
	if _, err := unix.Read(in.shutdownFD, b); err != nil {
		in.log.WithError(err).Debug("shutdown eventfd read error, shutting down anyway")
	}
}

// recvOne reads and decodes a single netlink message. The bool return
// means "peer closed, stop the loop cleanly".
func (in *Ingestor) recvOne(buf []byte) (bool, error) {
	n, _, err := unix.Recvfrom(in.sockFD, buf, 0)
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("recvfrom netlink: %w", err)
	}
	if n == 0 {
		return true, nil
	}
	ev, ok := decodeEvent(buf[:n])
	if !ok {
		return false, nil
	}
	if ev.PID > 0 {
		in.handler(ev)
	}
	return false, nil
}

// decodeEvent parses proc_event.what and its matching union member.
// Layout offsets follow linux/cn_proc.h's struct proc_event as laid out
// after the nlmsghdr+cn_msg prefix.
func decodeEvent(buf []byte) (Event, bool) {
	if len(buf) < nlMsgHdrLen+cnMsgHdrLen+8 {
		return Event{}, false
	}
	body := buf[nlMsgHdrLen+cnMsgHdrLen:]
	what := binary.LittleEndian.Uint32(body[0:4])
	// body[4:8] cpu, body[8:16] timestamp; union starts at 16.
	union := body[16:]

	switch what {
	case procEventFork:
		if len(union) < 16 {
			return Event{}, false
		}
		parentPID := binary.LittleEndian.Uint32(union[0:4])
		return Event{Kind: KindFork, PID: int(parentPID)}, true
	case procEventExit:
		if len(union) < 16 {
			return Event{}, false
		}
		pid := binary.LittleEndian.Uint32(union[0:4])
		exitCode := binary.LittleEndian.Uint32(union[8:12])
		exitSignal := binary.LittleEndian.Uint32(union[12:16])
		return Event{
			Kind:       KindExit,
			PID:        int(pid),
			ExitCode:   int(exitCode),
			ExitSignal: int(exitSignal),
		}, true
	default:
		return Event{PID: 0}, true
	}
}

func (in *Ingestor) cleanup() {
	if err := in.subscribe(procCnMcastIgnore); err != nil {
		in.log.WithError(err).Debug("unsubscribe failed during shutdown")
	}
	_ = unix.Close(in.sockFD)
	_ = unix.Close(in.epFD)
	_ = unix.Close(in.shutdownFD)
}
