// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"encoding/binary"
	"fmt"
)

// Software style 2 init block, little endian:
//	[0] mode (csr15)
//	[2] rx ring log2 length << 4
//	[3] tx ring log2 length << 4
//	[4] station address
//	[10] reserved
//	[12] logical address (multicast) filter
//	[20] rx ring address
//	[24] tx ring address
type init_block []byte

const init_block_bytes = 28

func (b init_block) set(mode uint16, rx, tx *dma_ring, a StationAddress) {
	binary.LittleEndian.PutUint16(b[0:], mode)
	b[2] = byte(rx.log2_len << 4)
	b[3] = byte(tx.log2_len << 4)
	copy(b[4:10], a[:])
	b[10], b[11] = 0, 0
	// Multicast filter is never programmed.
	clear(b[12:20])
	binary.LittleEndian.PutUint32(b[20:], rx.phys)
	binary.LittleEndian.PutUint32(b[24:], tx.phys)
}

func (b init_block) mode() uint16 { return binary.LittleEndian.Uint16(b[0:]) }

func (b init_block) String() string {
	var a StationAddress
	copy(a[:], b[4:10])
	return fmt.Sprintf("mode 0x%04x, rx %d @ %x, tx %d @ %x, address %s, filter %x",
		b.mode(),
		1<<(b[2]>>4), binary.LittleEndian.Uint32(b[20:]),
		1<<(b[3]>>4), binary.LittleEndian.Uint32(b[24:]),
		a, []byte(b[12:20]))
}

type StationAddress [6]byte

func (a StationAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}
