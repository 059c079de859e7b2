// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import (
	"fmt"
	"sync"
	"time"
)

// dbgEvent is one entry in a Tag's debug ring, adapted from
// rfm69/dbgbuf.go's dbgPush/dbgPrint.
type dbgEvent struct {
	at  time.Time
	txt string
}

// dbgRing is a small bounded ring buffer of recent internal events, used
// for offline debugging since spec.md §7 mandates that in-band protocol
// errors never surface to the reader.
type dbgRing struct {
	mu  sync.Mutex
	buf []dbgEvent
	cap int
}

func newDbgRing(capacity int) *dbgRing {
	return &dbgRing{cap: capacity}
}

func (d *dbgRing) push(format string, v ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = append(d.buf, dbgEvent{time.Now(), fmt.Sprintf(format, v...)})
	if len(d.buf) > d.cap {
		d.buf = d.buf[len(d.buf)-d.cap:]
	}
}

// lines renders the ring as human-readable "seconds: text" lines, relative
// to the first retained event, mirroring dbgPrint's time-since-start
// formatting.
func (d *dbgRing) lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.buf) == 0 {
		return nil
	}
	t0 := d.buf[0].at
	out := make([]string, len(d.buf))
	for i, ev := range d.buf {
		out[i] = fmt.Sprintf("%.6fs: %s", ev.at.Sub(t0).Seconds(), ev.txt)
	}
	return out
}
