// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"fmt"
	"io"
)

// Only md1 is shown while the deferred task may be re-arming slots.
func (q *rx_ring) dump_ring(w io.Writer, running bool) {
	for i := uint(0); i < q.len(); i++ {
		if running {
			fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, i, q.rx_desc(i).status())
		} else {
			fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, i, q.rx_desc(i))
		}
	}
}

func (q *tx_ring) dump_ring(w io.Writer) {
	for i := uint(0); i < q.len(); i++ {
		fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, i, q.tx_desc(i))
	}
}

// ShowRings writes device state and, with detail, every descriptor.
func (d *Device) ShowRings(w io.Writer, detail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(w, "%s: %s, %s mode, address %s\n", d.Name, d.state, d.regs, d.station)
	if d.state == state_detached {
		return
	}
	v := d.regs.readCSR(csr0)
	fmt.Fprintf(w, "csr0 0x%04x: %s, missed %d\n", v, csr0String(v), d.regs.readCSR(csr112))
	fmt.Fprintf(w, "init block @ %x: %s\n", d.init_block_phys, d.init_block)
	if d.rx.allocated() {
		fmt.Fprintf(w, "rx ring @ %x: len %d current %d\n", d.rx.phys, d.rx.len(), d.rx.head.Load())
		if detail {
			d.rx.dump_ring(w, d.state != state_stopped)
		}
	}
	if d.tx.allocated() {
		q := &d.tx
		fmt.Fprintf(w, "tx ring @ %x: len %d current %d last %d in flight %d\n",
			q.phys, q.len(), q.current, q.last, q.n_in_flight)
		if detail {
			q.dump_ring(w)
		}
	}
}
