// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Pcnet probes PCnet-PCI functions and runs the packet engine against a
// simulated chip.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinasystems/flags"
)

var Args = os.Args
var Exit = os.Exit
var Stdout io.Writer = os.Stdout
var Stderr io.Writer = os.Stderr

type command interface {
	String() string
	Usage() string
	Apropos() string
	Man() string
	Main(args ...string) error
}

type byName map[string]command

var commands = byName{}

func (m byName) plot(cs ...command) {
	for _, c := range cs {
		m[c.String()] = c
	}
}

func (m byName) keys() (ks []string) {
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return
}

func init() {
	commands.plot(loopbackCommand{})
}

func usage() string {
	var b strings.Builder
	b.WriteString("usage: pcnet COMMAND [ARGS]...\n")
	for _, k := range commands.keys() {
		fmt.Fprintf(&b, "\t%-12s%s\n", k, commands[k].Apropos())
	}
	return b.String()
}

// Main runs args[0] as a command.  -h, -help and --help print its usage
// and manual instead.
func Main(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("COMMAND: missing\n%s", usage())
	}
	c, found := commands[args[0]]
	if !found {
		return fmt.Errorf("%s: command not found\n%s", args[0], usage())
	}
	flag, args := flags.New(args[1:], "-h", "-help", "--help")
	if flag.ByName["-h"] || flag.ByName["-help"] || flag.ByName["--help"] {
		fmt.Fprintf(Stdout, "usage: %s\n%s\n", c.Usage(), c.Man())
		return nil
	}
	return c.Main(args...)
}

func main() {
	if err := Main(Args[1:]...); err != nil {
		fmt.Fprintln(Stderr, "pcnet:", err)
		Exit(1)
	}
}
