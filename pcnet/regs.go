// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"github.com/platinasystems/pcnet/hw"
)

// Register numbers.
const (
	csr0 = 0
	// Init block address [15:0] and [31:16].
	csr1 = 1
	csr2 = 2
	csr4 = 4
	// Mode register; seeds init block mode.
	csr15 = 15
	// Missed frame count.
	csr112 = 112

	bcr9  = 9
	bcr20 = 20
)

// CSR0 bits.
const (
	csr0_init  = 1 << 0
	csr0_start = 1 << 1
	csr0_stop  = 1 << 2
	// Transmit demand.
	csr0_tdmd = 1 << 3
	csr0_txon = 1 << 4
	csr0_rxon = 1 << 5
	// Interrupt enable.
	csr0_iena = 1 << 6
	csr0_intr = 1 << 7
	// Init done.
	csr0_idon = 1 << 8
	csr0_tint = 1 << 9
	csr0_rint = 1 << 10
	csr0_merr = 1 << 11
	csr0_miss = 1 << 12
	csr0_cerr = 1 << 13
	csr0_babl = 1 << 14
	csr0_err  = 1 << 15

	// Writing 1 to any of these starts a command.
	csr0_commands = csr0_init | csr0_start | csr0_stop | csr0_tdmd
)

const (
	csr4_auto_pad_xmit = 1 << 11
	csr15_promiscuous  = 1 << 15

	bcr9_full_duplex_enable = 1 << 0
	bcr9_aui_full_duplex    = 1 << 1

	// 32 bit descriptors and init block.
	bcr20_software_style_2 = 2
)

var csr0Strings = [...]string{
	"init", "start", "stop", "tdmd", "txon", "rxon", "iena", "intr",
	"idon", "tint", "rint", "merr", "miss", "cerr", "babl", "err",
}

func csr0String(v uint16) (s string) {
	for i, n := range csr0Strings {
		if v&(1<<uint(i)) != 0 {
			if s != "" {
				s += " "
			}
			s += n
		}
	}
	if s == "" {
		s = "0"
	}
	return
}

// Windowed register access.  Chosen once at attach by probe.
type regs interface {
	reset()
	readCSR(n uint) uint16
	writeCSR(n uint, v uint16)
	readBCR(n uint) uint16
	writeBCR(n uint, v uint16)
	String() string
}

// I/O window offsets from base for 16 bit access.
const (
	wio_rdp   = 0x10
	wio_rap   = 0x12
	wio_reset = 0x14
	wio_bdp   = 0x16
)

// Same for 32 bit access.
const (
	dwio_rdp   = 0x10
	dwio_rap   = 0x14
	dwio_reset = 0x18
	dwio_bdp   = 0x1c
)

type wio struct {
	io   hw.PortIO
	base uint32
}

func (r *wio) String() string { return "wio" }

// Reading the reset port resets the chip.
func (r *wio) reset() { r.io.In16(r.base + wio_reset) }

func (r *wio) readCSR(n uint) uint16 {
	r.io.Out16(r.base+wio_rap, uint16(n))
	return r.io.In16(r.base + wio_rdp)
}

func (r *wio) writeCSR(n uint, v uint16) {
	r.io.Out16(r.base+wio_rap, uint16(n))
	r.io.Out16(r.base+wio_rdp, v)
}

func (r *wio) readBCR(n uint) uint16 {
	r.io.Out16(r.base+wio_rap, uint16(n))
	return r.io.In16(r.base + wio_bdp)
}

func (r *wio) writeBCR(n uint, v uint16) {
	r.io.Out16(r.base+wio_rap, uint16(n))
	r.io.Out16(r.base+wio_bdp, v)
}

// Upper 16 bits are undefined on read and written as zero.
type dwio struct {
	io   hw.PortIO
	base uint32
}

func (r *dwio) String() string { return "dwio" }

func (r *dwio) reset() { r.io.In32(r.base + dwio_reset) }

func (r *dwio) readCSR(n uint) uint16 {
	r.io.Out32(r.base+dwio_rap, uint32(n))
	return uint16(r.io.In32(r.base+dwio_rdp) & 0xffff)
}

func (r *dwio) writeCSR(n uint, v uint16) {
	r.io.Out32(r.base+dwio_rap, uint32(n))
	r.io.Out32(r.base+dwio_rdp, uint32(v))
}

func (r *dwio) readBCR(n uint) uint16 {
	r.io.Out32(r.base+dwio_rap, uint32(n))
	return uint16(r.io.In32(r.base+dwio_bdp) & 0xffff)
}

func (r *dwio) writeBCR(n uint, v uint16) {
	r.io.Out32(r.base+dwio_rap, uint32(n))
	r.io.Out32(r.base+dwio_bdp, uint32(v))
}

// probe resets the chip under each access width in turn.  A chip that
// comes out of reset reading exactly stop under a width uses that width.
// Probing is destructive and must come before any other register access.
func probe(io hw.PortIO, base uint32) (r regs, err error) {
	for _, r = range []regs{&wio{io: io, base: base}, &dwio{io: io, base: base}} {
		r.reset()
		if r.readCSR(csr0) == csr0_stop {
			return
		}
	}
	r = nil
	err = ErrDeviceNotFound
	return
}

// Station address is in the first 6 bytes of the address prom.
func readStationAddress(io hw.PortIO, base uint32) (a StationAddress) {
	for i := range a {
		a[i] = io.In8(base + uint32(i))
	}
	return
}

// Probe resets the chip at base and reports its access mode and station
// address without allocating anything.
func Probe(io hw.PortIO, base uint32) (mode string, a StationAddress, err error) {
	r, err := probe(io, base)
	if err != nil {
		return
	}
	mode = r.String()
	a = readStationAddress(io, base)
	return
}
