// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"sync/atomic"

	"github.com/platinasystems/log"
)

// Interrupt is the immediate handler.  It acknowledges every cause and
// counts device errors.  Ring work is left to the deferred task, in which
// case interrupts stay disabled until the task has run.
func (d *Device) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != state_running {
		return
	}
	deferred := false
	v := d.regs.readCSR(csr0)
	for v&csr0_intr != 0 {
		d.counters.inc(Interrupts)
		if d.Debug {
			log.Print("debug", d.Name, ": interrupt ", csr0String(v))
		}
		// Writing back latched causes clears them.  Command bits must
		// not be written back or the chip would re-init.
		d.regs.writeCSR(csr0, v&^(csr0_iena|csr0_commands))
		if v&(csr0_tint|csr0_rint) != 0 {
			d.task.schedule()
			deferred = true
		}
		if v&csr0_cerr != 0 {
			d.counters.inc(Collisions)
		}
		if v&csr0_miss != 0 {
			d.counters.inc(RxErrors)
			d.counters.inc(RxMissed)
		}
		if v&csr0_babl != 0 {
			d.counters.inc(BabbleErrors)
		}
		if v&csr0_merr != 0 {
			d.counters.inc(MemoryErrors)
		}
		v = d.regs.readCSR(csr0)
	}
	if !deferred && !d.task.pending.Load() {
		d.regs.writeCSR(csr0, csr0_iena)
	}
}

// service is the deferred task: receive, then reclaim transmits, then
// enable interrupts again.  Pending clears before the rings are read so an
// interrupt arriving meanwhile runs the task once more.
func (d *Device) service() {
	d.task.pending.Store(false)
	n_rx := d.drain()

	d.mu.Lock()
	defer d.mu.Unlock()
	n_tx := d.reclaim()
	if d.queue_stopped && !d.tx.is_full() && d.state == state_running {
		d.wake_queue()
	}
	if d.state == state_running && !d.task.pending.Load() {
		d.regs.writeCSR(csr0, csr0_iena)
	}
	if d.Debug {
		log.Print("debug", d.Name, ": rx ", n_rx, " tx ", n_tx, " in flight ", d.tx.n_in_flight)
	}
}

// At most one run is pending at a time.  The run itself clears pending so
// a schedule during the run queues another.
type deferred_task struct {
	pending atomic.Bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

func (t *deferred_task) start(f func()) {
	t.pending.Store(false)
	t.wake = make(chan struct{}, 1)
	t.quit = make(chan struct{})
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		for {
			select {
			case <-t.quit:
				return
			case <-t.wake:
				f()
			}
		}
	}()
}

// schedule reports false when a run was already pending.
func (t *deferred_task) schedule() bool {
	if !t.pending.CompareAndSwap(false, true) {
		return false
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true
}

// halt asks the task to exit; the returned wait blocks until it has.
func (t *deferred_task) halt() (wait func()) {
	done := t.done
	if t.quit != nil {
		close(t.quit)
		t.quit = nil
	}
	return func() {
		if done != nil {
			<-done
		}
	}
}
