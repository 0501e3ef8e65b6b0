// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

// Device appends frame check sequence to each received frame.
const fcs_bytes = 4

// drain copies out frames the device has handed back, starting at current
// and stopping at the first slot the device owns.  Every slot visited is
// re-armed whether or not its frame was delivered.  At most one ring's worth
// per call.  Runs only on the deferred task.
func (d *Device) drain() (n uint) {
	q := &d.rx
	for n < q.len() {
		i := q.current
		md1 := q.at(i).md1()
		if md1&md1_own != 0 {
			break
		}
		d.receive(i, md1)
		q.arm(i)
		q.current = q.next(i)
		n++
	}
	q.head.Store(uint32(q.current))
	return
}

func (d *Device) receive(i uint, md1 uint32) {
	q := &d.rx
	if md1&md1_err != 0 {
		d.count_rx_error(md1)
		return
	}
	mcnt := uint(q.at(i).md2() & md2_rx_message_byte_count)
	// Frames spanning buffers are not supported.
	if md1&md1_one_frame != md1_one_frame || mcnt <= fcs_bytes || mcnt > q.buf_bytes {
		d.counters.inc(RxErrors)
		d.counters.inc(RxLengthErrors)
		return
	}
	l := mcnt - fcs_bytes
	f := d.alloc_frame(int(l))
	if f == nil {
		d.counters.inc(RxDropped)
		return
	}
	copy(f, q.buf[i][:l])
	d.counters.inc(RxPackets)
	d.counters.add(RxBytes, uint64(l))
	if d.Sink != nil {
		d.Sink.Deliver(f)
	}
}

func (d *Device) alloc_frame(n int) []byte {
	if d.AllocFrame != nil {
		if f := d.AllocFrame(n); len(f) >= n {
			return f[:n]
		}
		return nil
	}
	return make([]byte, n)
}
