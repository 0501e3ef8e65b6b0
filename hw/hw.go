// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Port I/O and DMA memory access for user space device drivers.
package hw

import (
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// PortIO reads and writes device registers at absolute I/O addresses.
// Accesses never fail; a missing device reads back all ones.
type PortIO interface {
	In8(port uint32) uint8
	In16(port uint32) uint16
	In32(port uint32) uint32
	Out16(port uint32, v uint16)
	Out32(port uint32, v uint32)
}

var bigEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 0
}()

func word(b []byte) *uint32 {
	if len(b) < 4 {
		panic(fmt.Errorf("hw: short dma word %d bytes", len(b)))
	}
	p := unsafe.Pointer(&b[0])
	if uintptr(p)&3 != 0 {
		panic(fmt.Errorf("hw: unaligned dma word %p", p))
	}
	return (*uint32)(p)
}

// LoadUint32 atomically reads a little-endian 32 bit word of DMA memory.
// Device side writes to the word happen before the load returns.
func LoadUint32(b []byte) uint32 {
	v := atomic.LoadUint32(word(b))
	if bigEndian {
		v = bits.ReverseBytes32(v)
	}
	return v
}

// StoreUint32 atomically writes a little-endian 32 bit word of DMA memory.
// All prior host writes are visible to the device once the store is.
func StoreUint32(b []byte, v uint32) {
	if bigEndian {
		v = bits.ReverseBytes32(v)
	}
	atomic.StoreUint32(word(b), v)
}
