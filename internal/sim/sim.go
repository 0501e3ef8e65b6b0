// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim models a PCnet-PCI chip behind port I/O with its DMA engine
// working on a hw.Heap.  Nothing happens on the wire unless asked for:
// transmits complete and frames arrive only on explicit calls, except in
// loopback where demanded transmits are completed and received at once.
package sim

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/platinasystems/pcnet/hw"
)

// Access widths the chip answers to.
type Mode int

const (
	WIOAndDWIO Mode = iota
	WIOOnly
	DWIOOnly
)

var modeStrings = [...]string{
	WIOAndDWIO: "wio+dwio",
	WIOOnly:    "wio",
	DWIOOnly:   "dwio",
}

func (m Mode) String() string { return modeStrings[m] }

type Config struct {
	// I/O base; the chip decodes 32 bytes from here.
	Base uint32
	Mem  *hw.Heap
	Mode Mode
	// Address prom contents.
	Address [6]byte
	// Init never sets init done.
	NoInitDone bool
	// Complete transmits on demand and receive them back.
	Loopback bool
}

// Register model.
const (
	csr0_init = 1 << 0
	csr0_strt = 1 << 1
	csr0_stop = 1 << 2
	csr0_tdmd = 1 << 3
	csr0_txon = 1 << 4
	csr0_rxon = 1 << 5
	csr0_iena = 1 << 6
	csr0_intr = 1 << 7
	csr0_idon = 1 << 8
	csr0_tint = 1 << 9
	csr0_rint = 1 << 10
	csr0_merr = 1 << 11
	csr0_miss = 1 << 12
	csr0_cerr = 1 << 13
	csr0_babl = 1 << 14
	csr0_err  = 1 << 15

	csr0_errors = csr0_babl | csr0_cerr | csr0_miss | csr0_merr
	csr0_causes = csr0_errors | csr0_rint | csr0_tint | csr0_idon

	csr4_default = 0x0115
)

const (
	md1_enp = 1 << 24
	md1_stp = 1 << 25
	md1_buf = 1 << 26
	md1_err = 1 << 30
	md1_own = 1 << 31
)

const (
	wio_rdp   = 0x10
	wio_rap   = 0x12
	wio_reset = 0x14
	wio_bdp   = 0x16

	dwio_rdp   = 0x10
	dwio_rap   = 0x14
	dwio_reset = 0x18
	dwio_bdp   = 0x1c

	window_bytes = 0x20

	// Upper half of 32 bit reads is undefined.
	dwio_noise = 0xa5a50000
)

type ring struct {
	base    uint32
	len     uint
	current uint
}

type Chip struct {
	cfg Config

	mu     sync.Mutex
	rap    uint16
	status uint16
	csr    [128]uint16
	bcr    [32]uint16
	missed uint16

	inited, running bool
	rx, tx          ring

	n16, n32    int
	starts      int
	demands     int
	initAddress [6]byte
	sent        [][]byte

	irq chan struct{}
}

var _ hw.PortIO = (*Chip)(nil)

// New returns a chip fresh out of reset.
func New(cfg Config) *Chip {
	c := &Chip{cfg: cfg}
	c.reset()
	return c
}

func (c *Chip) String() string {
	return fmt.Sprintf("sim %s @ 0x%x", c.cfg.Mode, c.cfg.Base)
}

func (c *Chip) reset() {
	c.rap = 0
	c.status = csr0_stop
	c.csr = [128]uint16{}
	c.csr[4] = csr4_default
	c.bcr = [32]uint16{}
	c.missed = 0
	c.inited, c.running = false, false
	c.rx, c.tx = ring{}, ring{}
	c.update()
}

func (c *Chip) offset(port uint32) (o uint32, ok bool) {
	if port < c.cfg.Base || port-c.cfg.Base >= window_bytes {
		return
	}
	return port - c.cfg.Base, true
}

func (c *Chip) In8(port uint32) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.offset(port)
	switch {
	case !ok:
		return 0xff
	case o < 6:
		return c.cfg.Address[o]
	case o == 14 || o == 15:
		return 'W'
	case o < 16:
		return 0
	}
	return 0xff
}

func (c *Chip) In16(port uint32) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n16++
	o, ok := c.offset(port)
	if !ok || c.cfg.Mode == DWIOOnly {
		return 0xffff
	}
	switch o {
	case wio_rdp:
		return c.readCSR(c.rap)
	case wio_rap:
		return c.rap
	case wio_reset:
		c.reset()
		return 0
	case wio_bdp:
		return c.readBCR(c.rap)
	}
	return 0xffff
}

func (c *Chip) Out16(port uint32, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n16++
	o, ok := c.offset(port)
	if !ok || c.cfg.Mode == DWIOOnly {
		return
	}
	switch o {
	case wio_rdp:
		c.writeCSR(c.rap, v)
	case wio_rap:
		c.rap = v & 0x7f
	case wio_bdp:
		c.writeBCR(c.rap, v)
	}
}

func (c *Chip) In32(port uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n32++
	o, ok := c.offset(port)
	if !ok || c.cfg.Mode == WIOOnly {
		return 0xffffffff
	}
	switch o {
	case dwio_rdp:
		return dwio_noise | uint32(c.readCSR(c.rap))
	case dwio_rap:
		return dwio_noise | uint32(c.rap)
	case dwio_reset:
		c.reset()
		return dwio_noise
	case dwio_bdp:
		return dwio_noise | uint32(c.readBCR(c.rap))
	}
	return 0xffffffff
}

func (c *Chip) Out32(port uint32, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n32++
	o, ok := c.offset(port)
	if !ok || c.cfg.Mode == WIOOnly {
		return
	}
	switch o {
	case dwio_rdp:
		c.writeCSR(c.rap, uint16(v))
	case dwio_rap:
		c.rap = uint16(v) & 0x7f
	case dwio_bdp:
		c.writeBCR(c.rap, uint16(v))
	}
}

func (c *Chip) csr0() (v uint16) {
	v = c.status
	if v&csr0_causes != 0 {
		v |= csr0_intr
	}
	if v&csr0_errors != 0 {
		v |= csr0_err
	}
	return
}

func (c *Chip) readCSR(n uint16) uint16 {
	switch n {
	case 0:
		return c.csr0()
	case 112:
		return c.missed
	}
	return c.csr[n&0x7f]
}

func (c *Chip) writeCSR(n uint16, v uint16) {
	switch n {
	case 0:
		c.writeCSR0(v)
	case 112:
		c.missed = v
	default:
		c.csr[n&0x7f] = v
	}
}

func (c *Chip) readBCR(n uint16) uint16 { return c.bcr[n&0x1f] }
func (c *Chip) writeBCR(n uint16, v uint16) { c.bcr[n&0x1f] = v }

func (c *Chip) writeCSR0(v uint16) {
	// Causes are cleared by writing 1.
	c.status &^= v & csr0_causes
	if v&csr0_stop != 0 {
		c.status = csr0_stop
		c.running = false
		c.update()
		return
	}
	c.status = c.status&^csr0_iena | v&csr0_iena
	if v&csr0_init != 0 {
		c.init()
	}
	if v&csr0_strt != 0 {
		c.starts++
		if c.inited {
			c.running = true
			c.status |= csr0_strt | csr0_txon | csr0_rxon
			c.status &^= csr0_stop
		}
	}
	if v&csr0_tdmd != 0 {
		c.demands++
		if c.running && c.cfg.Loopback {
			c.transmit(-1, 0)
		}
	}
	c.update()
}

// init loads the init block named by csr1 and csr2.
func (c *Chip) init() {
	// Only 32 bit structures are modeled.
	if c.bcr[20]&0xff != 2 {
		c.status |= csr0_merr
		return
	}
	a := uint32(c.csr[1]) | uint32(c.csr[2])<<16
	b, ok := c.cfg.Mem.Slice(a, 28)
	if !ok {
		c.status |= csr0_merr
		return
	}
	c.csr[15] = binary.LittleEndian.Uint16(b[0:])
	c.rx = ring{base: binary.LittleEndian.Uint32(b[20:]), len: 1 << (b[2] >> 4)}
	c.tx = ring{base: binary.LittleEndian.Uint32(b[24:]), len: 1 << (b[3] >> 4)}
	copy(c.initAddress[:], b[4:10])
	c.inited = true
	c.status |= csr0_init
	c.status &^= csr0_stop
	if !c.cfg.NoInitDone {
		c.status |= csr0_idon
	}
}

func (c *Chip) update() {
	if c.irq == nil || c.status&csr0_iena == 0 || c.status&csr0_causes == 0 {
		return
	}
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

// Connect delivers interrupts to f on its own goroutine while the line is
// asserted.  f runs without the chip lock held.
func (c *Chip) Connect(f func()) (disconnect func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	irq := make(chan struct{}, 1)
	quit := make(chan struct{})
	done := make(chan struct{})
	c.irq = irq
	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-irq:
				f()
			}
		}
	}()
	c.update()
	return func() {
		c.mu.Lock()
		c.irq = nil
		c.mu.Unlock()
		close(quit)
		<-done
	}
}

func (c *Chip) desc(r *ring, i uint) []byte {
	b, ok := c.cfg.Mem.Slice(r.base+uint32(i)*16, 16)
	if !ok {
		c.status |= csr0_merr
		return nil
	}
	return b
}

func buffer_bytes(md1 uint32) uint { return uint(-int32(md1&0xffff)) & 0xfff }

// transmit completes up to n device owned transmit descriptors, n < 0
// meaning all of them.  Non-zero md2 completes with those errors.
func (c *Chip) transmit(n int, md2 uint32) (done int) {
	for ; n < 0 || done < n; done++ {
		d := c.desc(&c.tx, c.tx.current)
		if d == nil {
			break
		}
		md1 := hw.LoadUint32(d[4:])
		if md1&md1_own == 0 {
			break
		}
		l := buffer_bytes(md1)
		b, ok := c.cfg.Mem.Slice(binary.LittleEndian.Uint32(d[0:]), l)
		if !ok {
			c.status |= csr0_merr
			break
		}
		f := append([]byte(nil), b...)
		c.sent = append(c.sent, f)
		binary.LittleEndian.PutUint32(d[8:], md2)
		md1 &^= md1_own
		if md2 != 0 {
			md1 |= md1_err
		}
		hw.StoreUint32(d[4:], md1)
		c.status |= csr0_tint
		c.tx.current = (c.tx.current + 1) % c.tx.len
		if c.cfg.Loopback && md2 == 0 {
			c.receive(f, 0)
		}
	}
	c.update()
	return
}

// CompleteTx finishes up to n transmits successfully and returns how many.
func (c *Chip) CompleteTx(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return c.transmit(n, 0)
}

// FailTx finishes up to n transmits with md2 error bits.
func (c *Chip) FailTx(n int, md2 uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return c.transmit(n, md2)
}

func (c *Chip) receive(frame []byte, md1Status uint32) bool {
	d := c.desc(&c.rx, c.rx.current)
	if d == nil {
		return false
	}
	md1 := hw.LoadUint32(d[4:])
	if md1&md1_own == 0 {
		c.missed++
		c.status |= csr0_miss
		c.update()
		return false
	}
	size := buffer_bytes(md1)
	b, ok := c.cfg.Mem.Slice(binary.LittleEndian.Uint32(d[0:]), size)
	if !ok {
		c.status |= csr0_merr
		c.update()
		return false
	}
	n := uint(copy(b, frame))
	md1 = md1&0xffff | md1_stp | md1Status
	if n+4 > size {
		md1 |= md1_err | md1_buf
	} else {
		binary.LittleEndian.PutUint32(b[n:], crc32.ChecksumIEEE(frame))
		n += 4
		md1 |= md1_enp
	}
	binary.LittleEndian.PutUint32(d[8:], uint32(n)&0xfff)
	hw.StoreUint32(d[4:], md1)
	c.status |= csr0_rint
	c.rx.current = (c.rx.current + 1) % c.rx.len
	c.update()
	return true
}

// Receive places frame in the next receive buffer.  It returns false
// when the chip is stopped or the buffer is still owned by the host, in
// which case the frame is counted missed.
func (c *Chip) Receive(frame []byte) bool {
	return c.ReceiveStatus(frame, 0)
}

// ReceiveStatus is Receive with error bits or'ed into md1.
func (c *Chip) ReceiveStatus(frame []byte, md1 uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	return c.receive(frame, md1)
}

// RaiseStatus latches csr0 cause bits as if the chip had seen them.
func (c *Chip) RaiseStatus(causes uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status |= causes & csr0_causes
	c.update()
}

// Sent returns frames transmitted so far.
func (c *Chip) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// Accesses returns the number of 16 and 32 bit register accesses.
func (c *Chip) Accesses() (n16, n32 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n16, c.n32
}

func (c *Chip) ResetAccesses() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n16, c.n32 = 0, 0
}

// Status returns csr0 without counting an access.
func (c *Chip) Status() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csr0()
}

func (c *Chip) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Starts counts writes of the start bit.
func (c *Chip) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Demands counts transmit demands.
func (c *Chip) Demands() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.demands
}

func (c *Chip) CSR(n uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCSR(n)
}

func (c *Chip) BCR(n uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readBCR(n)
}

// InitAddress is the station address loaded from the init block.
func (c *Chip) InitAddress() [6]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initAddress
}

// InterruptAsserted reports whether the interrupt line is active.
func (c *Chip) InterruptAsserted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status&csr0_iena != 0 && c.status&csr0_causes != 0
}
