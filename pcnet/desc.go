// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"encoding/binary"
	"fmt"

	"github.com/platinasystems/pcnet/hw"
)

// Software style 2 descriptor, little endian:
//	[0] buffer address
//	[4] md1: [15:0] byte count (negative), flags
//	[8] md2: rx message byte count or tx error flags
//	[12] reserved
type descriptor []byte

const descriptor_bytes = 16

const (
	md1_byte_count      = 0xffff
	md1_end_of_packet   = 1 << 24
	md1_start_of_packet = 1 << 25
	// rx: buffer error; tx: deferred
	md1_buff = 1 << 26
	// rx: crc error; tx: one retry
	md1_crc = 1 << 27
	// rx: overflow; tx: more than one retry
	md1_oflo = 1 << 28
	// rx: framing error; tx: add fcs
	md1_fram = 1 << 29
	// Summary of rx or tx error bits.
	md1_err = 1 << 30
	md1_own = 1 << 31

	md1_one_frame = md1_start_of_packet | md1_end_of_packet
)

const (
	md2_rx_message_byte_count = 0xfff

	md2_tx_retry_error   = 1 << 26
	md2_tx_lost_carrier  = 1 << 27
	md2_tx_late_collison = 1 << 28
	md2_tx_underflow     = 1 << 30
	md2_tx_buffer_error  = 1 << 31
)

// Hardware wants the two's complement of the length.
func byte_count(n uint) uint32 { return uint32(-int32(n)) & md1_byte_count }

func (d descriptor) addr() uint32 { return binary.LittleEndian.Uint32(d[0:]) }
func (d descriptor) set_addr(v uint32) { binary.LittleEndian.PutUint32(d[0:], v) }

// Ownership is passed back and forth in md1 so it is always accessed atomically.
func (d descriptor) md1() uint32 { return hw.LoadUint32(d[4:]) }
func (d descriptor) set_md1(v uint32) { hw.StoreUint32(d[4:], v) }

func (d descriptor) md2() uint32 { return binary.LittleEndian.Uint32(d[8:]) }
func (d descriptor) set_md2(v uint32) { binary.LittleEndian.PutUint32(d[8:], v) }

func (d descriptor) is_owned_by_device() bool { return d.md1()&md1_own != 0 }

func owner(md1 uint32) string {
	if md1&md1_own != 0 {
		return "hw"
	}
	return "sw"
}

type rx_descriptor struct{ descriptor }

func (e rx_descriptor) String() (s string) {
	md1 := e.md1()
	s = fmt.Sprintf("%s: buffer %x, bytes %d", owner(md1), e.addr(), (-int32(md1&md1_byte_count))&0xfff)
	if md1&md1_own == 0 {
		s += fmt.Sprintf(", received %d", e.md2()&md2_rx_message_byte_count)
	}
	return s + rx_status(md1)
}

// status formats md1 alone.  Address and md2 are rewritten by re-arming
// without the device lock.
func (e rx_descriptor) status() string {
	md1 := e.md1()
	return fmt.Sprintf("%s: bytes %d", owner(md1), (-int32(md1&md1_byte_count))&0xfff) + rx_status(md1)
}

func rx_status(md1 uint32) (s string) {
	if md1&md1_start_of_packet != 0 {
		s += ", sop"
	}
	if md1&md1_end_of_packet != 0 {
		s += ", eop"
	}
	if md1&md1_err != 0 {
		s += ", error"
		if md1&md1_fram != 0 {
			s += " framing"
		}
		if md1&md1_oflo != 0 {
			s += " overflow"
		}
		if md1&md1_crc != 0 {
			s += " crc"
		}
		if md1&md1_buff != 0 {
			s += " buffer"
		}
	}
	return
}

type tx_descriptor struct{ descriptor }

func (e tx_descriptor) String() (s string) {
	md1 := e.md1()
	s = fmt.Sprintf("%s: buffer %x, bytes %d", owner(md1), e.addr(), (-int32(md1&md1_byte_count))&0xfff)
	if md1&md1_start_of_packet != 0 {
		s += ", sop"
	}
	if md1&md1_end_of_packet != 0 {
		s += ", eop"
	}
	if md1&md1_err != 0 {
		// Written by the chip before it cleared own.
		md2 := e.md2()
		s += ", error"
		if md2&md2_tx_underflow != 0 {
			s += " underflow"
		}
		if md2&md2_tx_late_collison != 0 {
			s += " late-collision"
		}
		if md2&md2_tx_lost_carrier != 0 {
			s += " lost-carrier"
		}
		if md2&md2_tx_retry_error != 0 {
			s += " retry"
		}
		if md2&md2_tx_buffer_error != 0 {
			s += " buffer"
		}
	}
	return
}
