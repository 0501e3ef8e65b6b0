// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

type Direction int

const (
	ToDevice Direction = iota
	FromDevice
)

var directionStrings = [...]string{
	ToDevice:   "to-device",
	FromDevice: "from-device",
}

func (d Direction) String() string {
	if int(d) < len(directionStrings) {
		return directionStrings[d]
	}
	return fmt.Sprintf("direction %d", int(d))
}

// DmaAllocator hands out memory the device can reach by 32 bit physical address.
type DmaAllocator interface {
	// Alloc returns n zeroed bytes and their physical address.
	Alloc(n uint) (b []byte, phys uint32, err error)
	Free(b []byte, phys uint32)
	// Map makes b visible to the device.
	Map(b []byte, dir Direction) (phys uint32, err error)
	// Unmap ends a mapping; FromDevice mappings copy device writes back.
	Unmap(phys uint32, n uint, dir Direction)
}

var ErrNoDmaMemory = errors.New("hw: out of dma memory")

// Descriptors and init blocks need 16 byte alignment.
const Log2DmaAlign = 4

const dmaAlign = 1 << Log2DmaAlign

type span struct{ offset, size uint32 }

type mapping struct {
	b   []byte
	dir Direction
}

// Heap is a DMA allocator over one contiguous arena at a fixed physical base.
// Device models reach the same memory with Slice.
type Heap struct {
	mu   sync.Mutex
	base uint32
	mem  []byte

	// Free spans sorted by offset, always coalesced.
	free []span
	used map[uint32]uint32
	maps map[uint32]mapping
}

func NewHeap(base uint32, size uint) *Heap {
	if base%dmaAlign != 0 {
		panic(fmt.Errorf("hw: dma heap base 0x%x not %d byte aligned", base, dmaAlign))
	}
	size = roundDma(size)
	if uint64(base)+uint64(size) > 1<<32 {
		panic(fmt.Errorf("hw: dma heap 0x%x+0x%x exceeds 32 bit address space", base, size))
	}
	// Back with words so the arena itself is aligned.
	w := make([]uint64, size/8)
	h := &Heap{
		base: base,
		mem:  unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), size),
		free: []span{{0, uint32(size)}},
		used: make(map[uint32]uint32),
		maps: make(map[uint32]mapping),
	}
	return h
}

func roundDma(n uint) uint {
	if n == 0 {
		n = 1
	}
	return (n + dmaAlign - 1) &^ (dmaAlign - 1)
}

func (h *Heap) Base() uint32 { return h.base }
func (h *Heap) Size() uint   { return uint(len(h.mem)) }

func (h *Heap) get(n uint) (o uint32, ok bool) {
	size := uint32(roundDma(n))
	for i := range h.free {
		s := &h.free[i]
		if s.size < size {
			continue
		}
		o = s.offset
		if s.size == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			s.offset += size
			s.size -= size
		}
		h.used[o] = size
		clear(h.mem[o : o+size])
		return o, true
	}
	return
}

func (h *Heap) put(o uint32) {
	size, ok := h.used[o]
	if !ok {
		panic(fmt.Errorf("hw: free of unallocated dma address 0x%x", h.base+o))
	}
	delete(h.used, o)
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].offset > o })
	h.free = append(h.free, span{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = span{o, size}
	// Merge with successor then predecessor.
	if i+1 < len(h.free) && h.free[i].offset+h.free[i].size == h.free[i+1].offset {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].offset+h.free[i-1].size == h.free[i].offset {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

func (h *Heap) Alloc(n uint) (b []byte, phys uint32, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.get(n)
	if !ok {
		err = fmt.Errorf("alloc %d bytes: %w", n, ErrNoDmaMemory)
		return
	}
	b = h.mem[o : o+uint32(n) : o+uint32(n)]
	phys = h.base + o
	return
}

func (h *Heap) Free(b []byte, phys uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.put(phys - h.base)
}

func (h *Heap) Map(b []byte, dir Direction) (phys uint32, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.get(uint(len(b)))
	if !ok {
		err = fmt.Errorf("map %d bytes %v: %w", len(b), dir, ErrNoDmaMemory)
		return
	}
	if dir == ToDevice {
		copy(h.mem[o:], b)
	}
	h.maps[o] = mapping{b: b, dir: dir}
	phys = h.base + o
	return
}

func (h *Heap) Unmap(phys uint32, n uint, dir Direction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o := phys - h.base
	m, ok := h.maps[o]
	if !ok {
		panic(fmt.Errorf("hw: unmap of unmapped dma address 0x%x", phys))
	}
	if m.dir != dir {
		panic(fmt.Errorf("hw: unmap 0x%x %v, mapped %v", phys, dir, m.dir))
	}
	if dir == FromDevice {
		copy(m.b[:n], h.mem[o:])
	}
	delete(h.maps, o)
	h.put(o)
}

// Slice returns n bytes of heap memory at phys as seen by the device.
func (h *Heap) Slice(phys uint32, n uint) (b []byte, ok bool) {
	if phys < h.base {
		return
	}
	o := uint64(phys - h.base)
	if o+uint64(n) > uint64(len(h.mem)) {
		return
	}
	return h.mem[o : o+uint64(n) : o+uint64(n)], true
}

// InUse returns bytes currently allocated or mapped.
func (h *Heap) InUse() (n uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.used {
		n += uint(s)
	}
	return
}

func (h *Heap) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var free uint
	for _, s := range h.free {
		free += uint(s.size)
	}
	return fmt.Sprintf("dma heap 0x%x: %d bytes, %d free in %d spans, %d mappings",
		h.base, len(h.mem), free, len(h.free), len(h.maps))
}
