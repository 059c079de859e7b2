// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package rt

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// schedParam mirrors struct sched_param from <sched.h>; only Priority is used
// by SCHED_FIFO/SCHED_RR.
type schedParam struct {
	Priority int32
}

// Scheduling policies accepted by LockRealtime.
const (
	SchedFIFO = 1
	SchedRR   = 2
)

// LockRealtime locks the calling goroutine to its own kernel thread and
// elevates that thread's scheduling policy and priority. The tag's
// receive/reply loop calls this once at startup so the Go scheduler cannot
// preempt it between an edge interrupt and the timer classification that
// must follow it within a bounded number of instructions — the same
// guarantee spec.md §5 describes for the original interrupt-driven firmware.
//
// priority must be in [1,99]; policy is SchedFIFO or SchedRR.
func LockRealtime(policy, priority int) error {
	runtime.LockOSThread()
	tid := unix.Gettid()
	param := schedParam{Priority: int32(priority)}
	_, _, errno := unix.RawSyscall(unix.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(policy), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return errno
	}
	return nil
}
