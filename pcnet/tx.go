// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"fmt"

	"github.com/platinasystems/pcnet/hw"
)

// Transmit hands one frame to the device.  Each frame takes exactly one
// descriptor.  ErrQueueFull means every slot is in flight; the queue has
// been stopped and will be woken once the deferred task reclaims a slot.
func (d *Device) Transmit(frame []byte) (err error) {
	if len(frame) == 0 || len(frame) > max_buffer_bytes {
		return fmt.Errorf("%s: transmit %d bytes: %w", d.Name, len(frame), ErrFrameSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != state_running {
		return fmt.Errorf("%s: transmit: %w", d.Name, ErrClosed)
	}
	if err = d.enqueue(frame); err != nil {
		err = fmt.Errorf("%s: transmit: %w", d.Name, err)
	}
	return
}

// Lock held.
func (d *Device) enqueue(frame []byte) (err error) {
	q := &d.tx
	if q.is_full() {
		d.stop_queue()
		return ErrQueueFull
	}
	n := uint(len(frame))
	phys, err := d.Dma.Map(frame, hw.ToDevice)
	if err != nil {
		return
	}
	i := q.current
	t := q.at(i)
	t.set_addr(phys)
	t.set_md2(0)
	// Device may take the slot as soon as it sees own.
	t.set_md1(md1_own | md1_one_frame | byte_count(n))
	q.frames[i] = tx_frame{phys: phys, n: n}
	q.current = q.next(i)
	q.n_in_flight++
	if q.is_full() {
		d.stop_queue()
	}
	// Keep interrupt enable as is and write no cause bits so nothing is acknowledged.
	d.regs.writeCSR(csr0, d.regs.readCSR(csr0)&csr0_iena|csr0_tdmd)
	return
}

// reclaim releases slots the device has finished with, oldest first.
// Frames with errors are counted and released the same way.  Lock held.
func (d *Device) reclaim() (n uint) {
	q := &d.tx
	for q.n_in_flight > 0 {
		t := q.at(q.last)
		md1 := t.md1()
		if md1&md1_own != 0 {
			break
		}
		f := &q.frames[q.last]
		d.Dma.Unmap(f.phys, f.n, hw.ToDevice)
		if md1&md1_err != 0 {
			d.count_tx_error(t.md2())
		} else {
			d.counters.inc(TxPackets)
			d.counters.add(TxBytes, uint64(f.n))
		}
		*f = tx_frame{}
		q.last = q.next(q.last)
		q.n_in_flight--
		n++
	}
	return
}
