// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Generic devices on PCI bus.
package pci

import (
	"fmt"
	"strconv"
	"strings"
)

// Device/vendor ID from PCI config space.
type VendorID uint16
type VendorDeviceID uint16

const (
	AMD   VendorID = 0x1022
	Intel VendorID = 0x8086
)

func (v VendorID) String() string       { return fmt.Sprintf("0x%04x", uint16(v)) }
func (d VendorDeviceID) String() string { return fmt.Sprintf("0x%04x", uint16(d)) }

// Vendor/Device pair
type DeviceID struct {
	Vendor VendorID
	Device VendorDeviceID
}

func (d DeviceID) String() string { return fmt.Sprintf("%v:%v", d.Vendor, d.Device) }

type BusAddress struct {
	Domain        uint16
	Bus, Slot, Fn uint8
}

func (a BusAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%01x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// ParseBusAddress accepts DOMAIN:BUS:SLOT.FN or BUS:SLOT.FN in hex.
func ParseBusAddress(s string) (a BusAddress, err error) {
	f := strings.Split(s, ":")
	if len(f) == 2 {
		f = append([]string{"0"}, f...)
	}
	if len(f) != 3 {
		err = fmt.Errorf("pci: %q: expected [DOMAIN:]BUS:SLOT.FN", s)
		return
	}
	sf := strings.Split(f[2], ".")
	if len(sf) != 2 {
		err = fmt.Errorf("pci: %q: expected SLOT.FN", s)
		return
	}
	var v [4]uint64
	for i, x := range []struct {
		s    string
		bits int
	}{{f[0], 16}, {f[1], 8}, {sf[0], 5}, {sf[1], 3}} {
		if v[i], err = strconv.ParseUint(x.s, 16, x.bits); err != nil {
			err = fmt.Errorf("pci: %q: %w", s, err)
			return
		}
	}
	a = BusAddress{
		Domain: uint16(v[0]),
		Bus:    uint8(v[1]),
		Slot:   uint8(v[2]),
		Fn:     uint8(v[3]),
	}
	return
}

type BaseAddressReg uint32

func (b BaseAddressReg) IsMem() bool { return b&(1<<0) == 0 }

func (b BaseAddressReg) Addr() uint32 {
	if b.IsMem() {
		return uint32(b &^ 0xf)
	}
	return uint32(b &^ 0x3)
}

func (b BaseAddressReg) Valid() bool { return b.Addr() != 0 }

func (b BaseAddressReg) String() string {
	if b == 0 {
		return "{}"
	}
	tp := "mem"
	if !b.IsMem() {
		tp = "i/o"
	}
	return fmt.Sprintf("{%s: 0x%08x}", tp, b.Addr())
}

// Config space offsets used by drivers here.
const (
	ConfigVendor        = 0x00
	ConfigDevice        = 0x02
	ConfigBaseAddress0  = 0x10
	ConfigInterruptLine = 0x3c
)

type Device struct {
	Addr BusAddress
	DeviceID
	// I/O base from BAR 0.
	BAR0 BaseAddressReg
	IRQ  uint8
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %v", &d.Addr, d.DeviceID)
}
