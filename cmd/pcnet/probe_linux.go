// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"

	"github.com/platinasystems/log"

	"github.com/platinasystems/pcnet/hw/pci"
	"github.com/platinasystems/pcnet/pcnet"
)

type probeCommand struct{}

func init() {
	commands.plot(probeCommand{})
}

func (probeCommand) String() string { return "probe" }

func (probeCommand) Usage() string { return "pcnet probe BUS-ADDRESS..." }

func (probeCommand) Apropos() string {
	return "identify PCnet-PCI functions and their access mode"
}

func (probeCommand) Man() string {
	return `
DESCRIPTION
	For each [DOMAIN:]BUS:SLOT.FN, read PCI config space from sysfs,
	reset the chip through its I/O BAR and report whether it answers
	to 16 bit (wio) or 32 bit (dwio) register access along with the
	station address from its address prom.

	Probing resets the chip; do not probe a function bound to a
	kernel driver.`
}

func (probeCommand) Main(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("BUS-ADDRESS: missing")
	}
	for _, s := range args {
		if err := probe(s); err != nil {
			return err
		}
	}
	return nil
}

func probe(s string) (err error) {
	a, err := pci.ParseBusAddress(s)
	if err != nil {
		return
	}
	d, err := pci.Open(a)
	if err != nil {
		return
	}
	if !pcnet.Matches(d.DeviceID) {
		fmt.Fprintf(Stdout, "%s: %v not a pcnet device\n", a, d.DeviceID)
		return
	}
	if !d.BAR0.Valid() || d.BAR0.IsMem() {
		return fmt.Errorf("%s: bar 0 %v: no i/o space", a, d.BAR0)
	}
	io, err := pci.OpenResourceIO(a, 0)
	if err != nil {
		return
	}
	defer io.Close()
	mode, station, err := pcnet.Probe(io, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", a, err)
	}
	log.Print("info", a, ": probed ", mode)
	fmt.Fprintf(Stdout, "%s: %s, %s, irq %d, %s mode, address %s\n",
		pcnet.InterfaceName(a), pcnet.DeviceName(d.DeviceID), d.BAR0, d.IRQ,
		mode, station)
	return
}
