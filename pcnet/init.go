// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcnet is the packet engine for AMD PCnet-PCI ethernet controllers.
//
// Host and device share a receive ring, a transmit ring and an init block
// in DMA memory.  Descriptors are handed back and forth by their own bit;
// registers are only used to start the chip, demand transmit and take
// interrupts.
package pcnet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/pcnet/hw"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrInitTimeout    = errors.New("init timeout")
	ErrQueueFull      = errors.New("tx queue full")
	ErrClosed         = errors.New("device closed")
	ErrRunning        = errors.New("device running")
	ErrDetached       = errors.New("device detached")
	ErrFrameSize      = errors.New("bad frame size")
)

type BringUpStep int

const (
	StepProbe BringUpStep = iota
	StepReset
	StepConfigureRings
	StepLoadAddress
	StepInit
	StepStart
)

var bringUpStepStrings = [...]string{
	StepProbe:          "probe",
	StepReset:          "reset",
	StepConfigureRings: "configure rings",
	StepLoadAddress:    "load address",
	StepInit:           "init",
	StepStart:          "start",
}

func (s BringUpStep) String() string {
	if s >= 0 && int(s) < len(bringUpStepStrings) {
		return bringUpStepStrings[s]
	}
	return fmt.Sprintf("step %d", int(s))
}

// BringUpError fails Attach or Open.  It is never retried.
type BringUpError struct {
	Dev  string
	Step BringUpStep
	Err  error
}

func (e *BringUpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Dev, e.Step, e.Err)
}

func (e *BringUpError) Unwrap() error { return e.Err }

// FrameSink takes received frames.  Deliver must not block and owns frame.
type FrameSink interface {
	Deliver(frame []byte)
}

type FrameSinkFunc func(frame []byte)

func (f FrameSinkFunc) Deliver(frame []byte) { f(frame) }

// QueueControl is told when transmit should stop and resume offering frames.
// Called with the device lock held; must not call back into the device.
type QueueControl interface {
	StopQueue()
	WakeQueue()
}

const (
	default_log2_ring_len   = 7
	default_rx_buffer_bytes = 1528
	default_init_polls      = 1000
	default_init_poll_delay = 10 * time.Microsecond

	min_rx_buffer_bytes = 64
	// Byte counts are 12 bits.
	max_buffer_bytes = 0xfff
)

type Config struct {
	// Name used in logs and errors; defaults to pcnet-BASE.
	Name string

	Dma   hw.DmaAllocator
	Sink  FrameSink
	Queue QueueControl

	// Log2 number of descriptors in each ring.
	RxRingLog2, TxRingLog2 uint

	// Size of each receive buffer including 4 byte FCS.
	RxBufferBytes uint

	// Bound on polls for init done and delay between them.
	InitPolls        uint
	InitPollInterval time.Duration

	// Leave BCR9 full duplex bits clear.
	HalfDuplex bool
	// Receive all frames regardless of destination.
	Promiscuous bool
	// Device pads short transmit frames to 64 bytes.
	AutoPadTx bool

	// Allocate received frame copies; returning nil drops the frame.
	AllocFrame func(n int) []byte

	// Log each interrupt and deferred task run.
	Debug bool
}

func (c *Config) defaults(base uint32) {
	if c.Name == "" {
		c.Name = fmt.Sprintf("pcnet-%x", base)
	}
	if c.RxRingLog2 == 0 {
		c.RxRingLog2 = default_log2_ring_len
	}
	if c.TxRingLog2 == 0 {
		c.TxRingLog2 = default_log2_ring_len
	}
	if c.RxBufferBytes == 0 {
		c.RxBufferBytes = default_rx_buffer_bytes
	}
	if c.InitPolls == 0 {
		c.InitPolls = default_init_polls
	}
	if c.InitPollInterval == 0 {
		c.InitPollInterval = default_init_poll_delay
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Dma == nil:
		return errors.New("pcnet: config: no dma allocator")
	case c.RxRingLog2 < min_log2_ring_len || c.RxRingLog2 > max_log2_ring_len:
		return fmt.Errorf("pcnet: config: rx ring log2 %d not in [%d, %d]",
			c.RxRingLog2, min_log2_ring_len, max_log2_ring_len)
	case c.TxRingLog2 < min_log2_ring_len || c.TxRingLog2 > max_log2_ring_len:
		return fmt.Errorf("pcnet: config: tx ring log2 %d not in [%d, %d]",
			c.TxRingLog2, min_log2_ring_len, max_log2_ring_len)
	case c.RxBufferBytes < min_rx_buffer_bytes || c.RxBufferBytes > max_buffer_bytes:
		return fmt.Errorf("pcnet: config: rx buffer bytes %d not in [%d, %d]",
			c.RxBufferBytes, min_rx_buffer_bytes, max_buffer_bytes)
	case c.InitPollInterval < 0:
		return fmt.Errorf("pcnet: config: negative init poll interval %v", c.InitPollInterval)
	}
	return nil
}

type state int

const (
	state_stopped state = iota
	state_running
	// Closed; deferred task still exiting.
	state_stopping
	state_detached
)

var stateStrings = [...]string{
	state_stopped:  "stopped",
	state_running:  "running",
	state_stopping: "stopping",
	state_detached: "detached",
}

func (s state) String() string { return stateStrings[s] }

type Device struct {
	Config

	io   hw.PortIO
	base uint32
	regs regs

	station StationAddress

	// Guards registers, tx ring and state.
	mu    sync.Mutex
	state state

	init_block      init_block
	init_block_phys uint32

	rx rx_ring
	tx tx_ring

	queue_stopped bool

	task     deferred_task
	counters counters
}

// Attach probes the chip at base, reads its station address and allocates
// the init block.  The device is left stopped.
func Attach(io hw.PortIO, base uint32, cfg Config) (d *Device, err error) {
	cfg.defaults(base)
	if err = cfg.Validate(); err != nil {
		return
	}
	d = &Device{Config: cfg, io: io, base: base}
	if d.regs, err = probe(io, base); err != nil {
		err = &BringUpError{Dev: d.Name, Step: StepProbe, Err: err}
		log.Print("err", err)
		d = nil
		return
	}
	d.station = readStationAddress(io, base)
	var b []byte
	if b, d.init_block_phys, err = d.Dma.Alloc(init_block_bytes); err != nil {
		err = &BringUpError{Dev: d.Name, Step: StepProbe, Err: err}
		log.Print("err", err)
		d = nil
		return
	}
	d.init_block = init_block(b)
	log.Print("info", d.Name, ": ", d.regs, " mode, address ", d.station)
	return
}

func (d *Device) String() string { return d.Name }

// StationAddress is the address read from the address prom at attach.
func (d *Device) StationAddress() StationAddress { return d.station }

// Mode reports register access width: wio or dwio.
func (d *Device) Mode() string { return d.regs.String() }

// Open brings the chip up with the given station address and starts
// servicing interrupts.  The lock is held throughout so bring-up is
// exclusive of all traffic.
func (d *Device) Open(a StationAddress) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case state_running, state_stopping:
		return fmt.Errorf("%s: open: %w", d.Name, ErrRunning)
	case state_detached:
		return fmt.Errorf("%s: open: %w", d.Name, ErrDetached)
	}
	if err = d.bring_up(a); err != nil {
		log.Print("err", err)
		return
	}
	d.state = state_running
	d.task.start(d.service)
	d.wake_queue()
	log.Print("info", d.Name, ": up, address ", a)
	return
}

func (d *Device) bring_up(a StationAddress) (err error) {
	d.regs.reset()

	// Chip is stopped so old rings may go.
	if err = d.release_rings(); err != nil {
		return &BringUpError{Dev: d.Name, Step: StepReset, Err: err}
	}

	d.regs.writeBCR(bcr20, bcr20_software_style_2)
	if !d.HalfDuplex {
		d.regs.writeBCR(bcr9, bcr9_full_duplex_enable|bcr9_aui_full_duplex)
	}
	mode := d.regs.readCSR(csr15)
	if d.Promiscuous {
		mode |= csr15_promiscuous
	}
	if err = d.rx.alloc(d.Dma, d.RxRingLog2, d.RxBufferBytes); err != nil {
		return &BringUpError{Dev: d.Name, Step: StepConfigureRings, Err: err}
	}
	if err = d.tx.alloc(d.Dma, d.TxRingLog2); err != nil {
		d.rx.free(d.Dma)
		return &BringUpError{Dev: d.Name, Step: StepConfigureRings, Err: err}
	}
	d.init_block.set(mode, &d.rx.dma_ring, &d.tx.dma_ring, a)
	if d.AutoPadTx {
		d.regs.writeCSR(csr4, d.regs.readCSR(csr4)|csr4_auto_pad_xmit)
	}

	d.regs.writeCSR(csr1, uint16(d.init_block_phys))
	d.regs.writeCSR(csr2, uint16(d.init_block_phys>>16))

	d.regs.writeCSR(csr0, csr0_init)
	if !d.wait_init_done() {
		d.regs.writeCSR(csr0, csr0_stop)
		return &BringUpError{Dev: d.Name, Step: StepInit, Err: ErrInitTimeout}
	}

	d.queue_stopped = true
	d.regs.writeCSR(csr0, csr0_start|csr0_iena)
	return
}

func (d *Device) wait_init_done() bool {
	for i := uint(0); i < d.InitPolls; i++ {
		if d.regs.readCSR(csr0)&csr0_idon != 0 {
			return true
		}
		time.Sleep(d.InitPollInterval)
	}
	return false
}

// Close stops the chip and interrupt service.  Rings stay for inspection
// and further transmits fail.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.state != state_running {
		d.mu.Unlock()
		return fmt.Errorf("%s: close: %w", d.Name, ErrClosed)
	}
	// Stop takes effect at once.
	d.regs.writeCSR(csr0, csr0_stop)
	d.state = state_stopping
	d.stop_queue()
	wait := d.task.halt()
	d.mu.Unlock()

	// Deferred task may be waiting for the lock.
	wait()

	d.mu.Lock()
	d.state = state_stopped
	d.mu.Unlock()
	log.Print("info", d.Name, ": down")
	return nil
}

// Detach releases rings, buffers and init block of a stopped device.
func (d *Device) Detach() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case state_running, state_stopping:
		return fmt.Errorf("%s: detach: %w", d.Name, ErrRunning)
	case state_detached:
		return fmt.Errorf("%s: detach: %w", d.Name, ErrDetached)
	}
	if err = d.release_rings(); err != nil {
		return
	}
	d.Dma.Free(d.init_block, d.init_block_phys)
	d.init_block = nil
	d.state = state_detached
	log.Print("info", d.Name, ": detached")
	return
}

func (d *Device) release_rings() error {
	if d.state == state_running || d.state == state_stopping {
		return fmt.Errorf("%s: release rings: %w", d.Name, ErrRunning)
	}
	if d.rx.allocated() {
		d.rx.free(d.Dma)
	}
	if d.tx.allocated() {
		d.tx.free(d.Dma)
	}
	return nil
}

func (d *Device) stop_queue() {
	if !d.queue_stopped {
		d.queue_stopped = true
		if d.Queue != nil {
			d.Queue.StopQueue()
		}
	}
}

func (d *Device) wake_queue() {
	if d.queue_stopped {
		d.queue_stopped = false
		if d.Queue != nil {
			d.Queue.WakeQueue()
		}
	}
}
