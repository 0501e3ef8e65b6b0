// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"golang.org/x/sync/errgroup"

	"github.com/platinasystems/pcnet/hw"
	"github.com/platinasystems/pcnet/internal/sim"
	"github.com/platinasystems/pcnet/pcnet"
)

const (
	simIoBase   = 0xc000
	simDmaBase  = 0x100000
	simDmaBytes = 4 << 20
)

var simAddress = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

const loopbackTimeout = 10 * time.Second

type loopbackCommand struct{}

func (loopbackCommand) String() string { return "loopback" }

func (loopbackCommand) Usage() string {
	return "pcnet loopback [-v] [-n COUNT] [-size BYTES] [-senders N] [-mode wio|dwio]"
}

func (loopbackCommand) Apropos() string {
	return "send frames through a simulated chip in loopback"
}

func (loopbackCommand) Man() string {
	return `
DESCRIPTION
	Attach the packet engine to a simulated PCnet-PCI chip whose
	transmits are received back on its own ring.  COUNT frames of
	BYTES each are sent by N concurrent senders, which wait for the
	queue to be woken when the transmit ring fills.

OPTIONS
	-n COUNT	frames to send, default 64
	-size BYTES	frame size, 60 to 1514, default 60
	-senders N	concurrent senders, default 1
	-mode MODE	restrict chip to 16 bit (wio) or 32 bit (dwio) access
	-v		print counters and rings`
}

// wakeQueue lets blocked senders retry once the engine wakes the queue.
type wakeQueue struct {
	stopped atomic.Bool
	wake    chan struct{}
}

func (q *wakeQueue) StopQueue() { q.stopped.Store(true) }

func (q *wakeQueue) WakeQueue() {
	q.stopped.Store(false)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func parmUint(parm *parms.Parms, name string, def, min, max uint64) (v uint64, err error) {
	s := parm.ByName[name]
	if len(s) == 0 {
		return def, nil
	}
	if v, err = strconv.ParseUint(s, 0, 32); err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s: %d not in [%d, %d]", name, v, min, max)
	}
	return
}

func (loopbackCommand) Main(args ...string) (err error) {
	flag, args := flags.New(args, "-v")
	parm, args := parms.New(args, "-n", "-size", "-senders", "-mode")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	n, err := parmUint(parm, "-n", 64, 1, 1<<20)
	if err != nil {
		return
	}
	size, err := parmUint(parm, "-size", 60, 60, 1514)
	if err != nil {
		return
	}
	senders, err := parmUint(parm, "-senders", 1, 1, 64)
	if err != nil {
		return
	}
	mode := sim.WIOAndDWIO
	switch s := parm.ByName["-mode"]; s {
	case "":
	case "wio":
		mode = sim.WIOOnly
	case "dwio":
		mode = sim.DWIOOnly
	default:
		return fmt.Errorf("-mode: %s: unknown", s)
	}

	heap := hw.NewHeap(simDmaBase, simDmaBytes)
	chip := sim.New(sim.Config{
		Base:     simIoBase,
		Mem:      heap,
		Mode:     mode,
		Address:  simAddress,
		Loopback: true,
	})

	var received, bad atomic.Uint64
	done := make(chan struct{})
	q := &wakeQueue{wake: make(chan struct{}, 1)}
	d, err := pcnet.Attach(chip, simIoBase, pcnet.Config{
		Dma:   heap,
		Queue: q,

		// Frames sent between two drains may fill two transmit rings.
		RxRingLog2: 8,
		TxRingLog2: 7,

		Sink: pcnet.FrameSinkFunc(func(f []byte) {
			if len(f) != int(size) {
				bad.Add(1)
			}
			if received.Add(1) == n {
				close(done)
			}
		}),
	})
	if err != nil {
		return
	}
	disconnect := chip.Connect(d.Interrupt)
	defer disconnect()
	if err = d.Open(d.StationAddress()); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), loopbackTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for s := uint64(0); s < senders; s++ {
		share := n / senders
		if s < n%senders {
			share++
		}
		s := s
		g.Go(func() error {
			return send(gctx, d, q, s, share, int(size))
		})
	}
	err = g.Wait()
	if err == nil {
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("received %d of %d: %w", received.Load(), n, ctx.Err())
		}
	}
	if err != nil {
		d.Close()
		d.Detach()
		return
	}

	fmt.Fprintf(Stdout, "%s: %s mode, address %s\n", d, d.Mode(), d.StationAddress())
	fmt.Fprintf(Stdout, "sent %d, received %d, bad %d\n", n, received.Load(), bad.Load())
	if flag.ByName["-v"] {
		// Last reclaim may still be running.
		for t := time.Now(); d.Counters()[pcnet.TxPackets] < n && time.Since(t) < time.Second; {
			time.Sleep(time.Millisecond)
		}
		c := d.Counters()
		writeCounters(&c)
		d.ShowRings(Stdout, false)
	}
	if err = d.Close(); err != nil {
		return
	}
	return d.Detach()
}

// Delay before retrying a full queue that was not woken.
func retryBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    50 * time.Microsecond,
		Max:    10 * time.Millisecond,
		Factor: 2,
		Jitter: false,
	}
}

func send(ctx context.Context, d *pcnet.Device, q *wakeQueue, sender, n uint64, size int) error {
	b := retryBackoff()
	for i := uint64(0); i < n; i++ {
		f := make([]byte, size)
		// Broadcast destination, sender and sequence in the source.
		copy(f, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		binary.BigEndian.PutUint16(f[6:], uint16(sender))
		binary.BigEndian.PutUint32(f[8:], uint32(i))
		for {
			err := d.Transmit(f)
			if err == nil {
				b.Reset()
				break
			}
			if !errors.Is(err, pcnet.ErrQueueFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			case <-time.After(b.Duration()):
			}
		}
	}
	return nil
}

// Aligned on a terminal, name=value otherwise.
func writeCounters(c *pcnet.Counters) {
	if f, ok := Stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		c.WriteTo(Stdout)
		return
	}
	for i, v := range c {
		if v != 0 {
			name := strings.Replace(pcnet.Counter(i).String(), " ", "_", -1)
			fmt.Fprintf(Stdout, "%s=%d\n", name, v)
		}
	}
}
