// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"fmt"
	"sync/atomic"

	"github.com/platinasystems/pcnet/hw"
)

// Length field of init block is 4 bits but hardware tops out at 512 descriptors.
const (
	min_log2_ring_len = 1
	max_log2_ring_len = 9
)

type dma_ring struct {
	desc     []byte
	phys     uint32
	log2_len uint
	// Next slot host hands to or expects back from device.
	current uint
}

func (r *dma_ring) len() uint { return 1 << r.log2_len }
func (r *dma_ring) next(i uint) uint { return (i + 1) & (r.len() - 1) }
func (r *dma_ring) allocated() bool { return r.desc != nil }
func (r *dma_ring) at(i uint) descriptor {
	return descriptor(r.desc[i*descriptor_bytes : (i+1)*descriptor_bytes])
}

// alloc leaves every descriptor zeroed and owned by software.
func (r *dma_ring) alloc(dma hw.DmaAllocator, log2_len uint) (err error) {
	r.log2_len = log2_len
	if r.desc, r.phys, err = dma.Alloc(r.len() * descriptor_bytes); err != nil {
		r.desc = nil
		return
	}
	clear(r.desc)
	r.current = 0
	return
}

func (r *dma_ring) free(dma hw.DmaAllocator) {
	if r.desc != nil {
		dma.Free(r.desc, r.phys)
	}
	*r = dma_ring{}
}

type rx_ring struct {
	dma_ring
	buf       [][]byte
	buf_phys  []uint32
	buf_bytes uint
	// Copy of current for readers not on the deferred task.
	head atomic.Uint32
}

func (r *rx_ring) rx_desc(i uint) rx_descriptor { return rx_descriptor{r.at(i)} }

// Return slot to device with full sized buffer.
func (r *rx_ring) arm(i uint) {
	d := r.at(i)
	d.set_addr(r.buf_phys[i])
	d.set_md2(0)
	d.set_md1(md1_own | byte_count(r.buf_bytes))
}

// alloc sets up descriptors and buffers.  All slots start owned by the
// device since the device does not look at the ring until init.
func (r *rx_ring) alloc(dma hw.DmaAllocator, log2_len, buf_bytes uint) (err error) {
	if err = r.dma_ring.alloc(dma, log2_len); err != nil {
		return
	}
	n := r.len()
	r.buf_bytes = buf_bytes
	r.buf = make([][]byte, n)
	r.buf_phys = make([]uint32, n)
	for i := range r.buf {
		if r.buf[i], r.buf_phys[i], err = dma.Alloc(buf_bytes); err != nil {
			r.buf = r.buf[:i]
			r.free(dma)
			return
		}
	}
	for i := uint(0); i < n; i++ {
		r.arm(i)
	}
	r.head.Store(0)
	return
}

func (r *rx_ring) free(dma hw.DmaAllocator) {
	for i := range r.buf {
		dma.Free(r.buf[i], r.buf_phys[i])
	}
	r.buf, r.buf_phys = nil, nil
	r.dma_ring.free(dma)
}

type tx_frame struct {
	phys uint32
	n    uint
}

type tx_ring struct {
	dma_ring
	// Oldest slot not yet reclaimed.
	last        uint
	n_in_flight uint
	frames      []tx_frame
}

func (r *tx_ring) tx_desc(i uint) tx_descriptor { return tx_descriptor{r.at(i)} }
func (r *tx_ring) is_full() bool { return r.n_in_flight == r.len() }

func (r *tx_ring) alloc(dma hw.DmaAllocator, log2_len uint) (err error) {
	if err = r.dma_ring.alloc(dma, log2_len); err != nil {
		return
	}
	r.frames = make([]tx_frame, r.len())
	r.last, r.n_in_flight = 0, 0
	return
}

// Frames still mapped are unmapped; device must be stopped.
func (r *tx_ring) free(dma hw.DmaAllocator) {
	for i := r.last; r.n_in_flight > 0; i = r.next(i) {
		f := &r.frames[i]
		dma.Unmap(f.phys, f.n, hw.ToDevice)
		r.n_in_flight--
	}
	r.frames = nil
	r.last = 0
	r.dma_ring.free(dma)
}

// current - last == n_in_flight mod ring length.
func (r *tx_ring) check() (err error) {
	m := r.len() - 1
	if (r.current-r.last)&m != r.n_in_flight&m || r.n_in_flight > r.len() {
		err = fmt.Errorf("tx ring: current %d last %d in flight %d len %d",
			r.current, r.last, r.n_in_flight, r.len())
	}
	return
}
