// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"fmt"
	"io"
	"sync/atomic"
)

type Counter int

const (
	RxPackets Counter = iota
	RxBytes
	// No memory for received frame copy.
	RxDropped
	RxErrors
	RxMissed
	RxFramingErrors
	RxCrcErrors
	RxOverflowErrors
	RxBufferErrors
	RxLengthErrors
	TxPackets
	TxBytes
	TxErrors
	TxUnderflowErrors
	TxLateCollisionErrors
	TxLostCarrierErrors
	TxRetryErrors
	TxBufferErrors
	Collisions
	BabbleErrors
	MemoryErrors
	Interrupts
	NCounters
)

var counterNames = [NCounters]string{
	RxPackets:             "rx packets",
	RxBytes:               "rx bytes",
	RxDropped:             "rx dropped",
	RxErrors:              "rx errors",
	RxMissed:              "rx missed",
	RxFramingErrors:       "rx framing errors",
	RxCrcErrors:           "rx crc errors",
	RxOverflowErrors:      "rx overflow errors",
	RxBufferErrors:        "rx buffer errors",
	RxLengthErrors:        "rx length errors",
	TxPackets:             "tx packets",
	TxBytes:               "tx bytes",
	TxErrors:              "tx errors",
	TxUnderflowErrors:     "tx underflow errors",
	TxLateCollisionErrors: "tx late collision errors",
	TxLostCarrierErrors:   "tx lost carrier errors",
	TxRetryErrors:         "tx retry errors",
	TxBufferErrors:        "tx buffer errors",
	Collisions:            "collisions",
	BabbleErrors:          "babble errors",
	MemoryErrors:          "memory errors",
	Interrupts:            "interrupts",
}

func (c Counter) String() string {
	if c >= 0 && c < NCounters {
		return counterNames[c]
	}
	return fmt.Sprintf("counter %d", int(c))
}

// Updated from interrupt, deferred task and transmit.
type counters [NCounters]atomic.Uint64

func (c *counters) inc(i Counter) { c[i].Add(1) }
func (c *counters) add(i Counter, v uint64) { c[i].Add(v) }

// Counters is a snapshot indexed by Counter.
type Counters [NCounters]uint64

func (c *counters) snapshot() (s Counters) {
	for i := range c {
		s[i] = c[i].Load()
	}
	return
}

// WriteTo prints non-zero counters one per line.
func (s *Counters) WriteTo(w io.Writer) (n int64, err error) {
	for i, v := range s {
		if v == 0 {
			continue
		}
		var m int
		m, err = fmt.Fprintf(w, "%-32s%d\n", Counter(i), v)
		n += int64(m)
		if err != nil {
			return
		}
	}
	return
}

func (d *Device) Counters() Counters { return d.counters.snapshot() }

func (d *Device) count_rx_error(md1 uint32) {
	d.counters.inc(RxErrors)
	if md1&md1_fram != 0 {
		d.counters.inc(RxFramingErrors)
	}
	if md1&md1_crc != 0 {
		d.counters.inc(RxCrcErrors)
	}
	if md1&md1_oflo != 0 {
		d.counters.inc(RxOverflowErrors)
	}
	if md1&md1_buff != 0 {
		d.counters.inc(RxBufferErrors)
	}
}

func (d *Device) count_tx_error(md2 uint32) {
	d.counters.inc(TxErrors)
	if md2&md2_tx_underflow != 0 {
		d.counters.inc(TxUnderflowErrors)
	}
	if md2&md2_tx_late_collison != 0 {
		d.counters.inc(TxLateCollisionErrors)
	}
	if md2&md2_tx_lost_carrier != 0 {
		d.counters.inc(TxLostCarrierErrors)
	}
	if md2&md2_tx_retry_error != 0 {
		d.counters.inc(TxRetryErrors)
	}
	if md2&md2_tx_buffer_error != 0 {
		d.counters.inc(TxBufferErrors)
	}
}
