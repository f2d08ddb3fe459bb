//go:build linux

package perfcnt

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type hwCounter struct {
	fd int
}

func openHardware(event Event) (Counter, error) {
	var config uint64
	switch event {
	case EventCPUCycles:
		config = unix.PERF_COUNT_HW_CPU_CYCLES
	case EventCacheMisses:
		config = unix.PERF_COUNT_HW_CACHE_MISSES
	case EventBranchMisses:
		config = unix.PERF_COUNT_HW_BRANCH_MISSES
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", event)
	}

	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config: config,
		Bits:   unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}

	// Measure the calling process on any CPU.
	fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrapf(ErrNotAvailable, "perf_event_open: %v", err)
	}

	return &hwCounter{fd: fd}, nil
}

func (c *hwCounter) Start() error {
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		return errors.Wrap(err, "error enabling perf event")
	}

	return nil
}

func (c *hwCounter) Stop() error {
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_DISABLE, 0); err != nil {
		return errors.Wrap(err, "error disabling perf event")
	}

	return nil
}

func (c *hwCounter) Read() (uint64, error) {
	var buf [8]byte
	if _, err := unix.Read(c.fd, buf[:]); err != nil {
		return 0, errors.Wrap(err, "error reading perf event counter")
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *hwCounter) Close() error {
	return unix.Close(c.fd)
}
