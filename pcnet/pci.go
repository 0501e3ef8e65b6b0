// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"fmt"

	"github.com/platinasystems/pcnet/hw/pci"
)

// PCI dev IDs
const (
	dev_id_79c970 = 0x2000
	dev_id_79c978 = 0x2001
)

type dev_id pci.VendorDeviceID

func (d dev_id) String() (v string) {
	var ok bool
	if v, ok = dev_id_names[d]; !ok {
		v = fmt.Sprintf("unknown %04x", uint(d))
	}
	return
}

var dev_id_names = map[dev_id]string{
	dev_id_79c970: "Am79C970A PCnet-PCI II/III",
	dev_id_79c978: "Am79C978 HomePNA",
}

// Matches reports whether the engine drives the PCI function.
func Matches(id pci.DeviceID) bool {
	if id.Vendor != pci.AMD {
		return false
	}
	_, ok := dev_id_names[dev_id(id.Device)]
	return ok
}

func DeviceName(id pci.DeviceID) string { return dev_id(id.Device).String() }

// InterfaceName names a device by bus position, e.g. pcnet0-3-0.
func InterfaceName(a pci.BusAddress) string {
	return fmt.Sprintf("pcnet%d-%d-%d", a.Bus, a.Slot, a.Fn)
}
