// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package pci

// Linux PCI code

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/platinasystems/pcnet/hw"
)

var sysBusPciPath string = "/sys/bus/pci/devices"

func SysfsPath(a BusAddress, format string, args ...interface{}) string {
	return filepath.Join(sysBusPciPath, a.String(), fmt.Sprintf(format, args...))
}

func sysfsOpenFile(a BusAddress, mode int, format string, args ...interface{}) (*os.File, error) {
	return os.OpenFile(SysfsPath(a, format, args...), mode, 0)
}

func configRead(f *os.File, offset int64, b []byte) (err error) {
	n, err := unix.Pread(int(f.Fd()), b, offset)
	if err == nil && n != len(b) {
		err = fmt.Errorf("config offset 0x%x: short read %d", offset, n)
	}
	return
}

// Open reads identity, BAR 0 and interrupt line from sysfs config space.
func Open(a BusAddress) (d *Device, err error) {
	f, err := sysfsOpenFile(a, os.O_RDONLY, "config")
	if err != nil {
		return
	}
	defer f.Close()
	var b [0x40]byte
	if err = configRead(f, 0, b[:]); err != nil {
		err = fmt.Errorf("pci %s: %w", a, err)
		return
	}
	d = &Device{Addr: a}
	d.Vendor = VendorID(binary.LittleEndian.Uint16(b[ConfigVendor:]))
	d.Device = VendorDeviceID(binary.LittleEndian.Uint16(b[ConfigDevice:]))
	d.BAR0 = BaseAddressReg(binary.LittleEndian.Uint32(b[ConfigBaseAddress0:]))
	d.IRQ = b[ConfigInterruptLine]
	return
}

// ResourceIO performs sized port I/O through a sysfs resource file.
// The kernel turns 1, 2 and 4 byte accesses into inb/inw/inl and outb/outw/outl.
// Port addresses are offsets from the start of the BAR.
type ResourceIO struct {
	f *os.File
}

var _ hw.PortIO = (*ResourceIO)(nil)

func OpenResourceIO(a BusAddress, bar uint) (r *ResourceIO, err error) {
	f, err := sysfsOpenFile(a, os.O_RDWR, "resource%d", bar)
	if err != nil {
		return
	}
	r = &ResourceIO{f: f}
	return
}

func (r *ResourceIO) Close() error { return r.f.Close() }

func (r *ResourceIO) in(port uint32, b []byte) {
	if _, err := unix.Pread(int(r.f.Fd()), b, int64(port)); err != nil {
		for i := range b {
			b[i] = 0xff
		}
	}
}

func (r *ResourceIO) out(port uint32, b []byte) {
	unix.Pwrite(int(r.f.Fd()), b, int64(port))
}

func (r *ResourceIO) In8(port uint32) uint8 {
	var b [1]byte
	r.in(port, b[:])
	return b[0]
}

func (r *ResourceIO) In16(port uint32) uint16 {
	var b [2]byte
	r.in(port, b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (r *ResourceIO) In32(port uint32) uint32 {
	var b [4]byte
	r.in(port, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *ResourceIO) Out16(port uint32, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	r.out(port, b[:])
}

func (r *ResourceIO) Out32(port uint32, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	r.out(port, b[:])
}
