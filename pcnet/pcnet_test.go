// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pcnet

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinasystems/pcnet/hw"
	"github.com/platinasystems/pcnet/internal/sim"
)

const testBase = 0xc000

var testAddress = StationAddress{0x00, 0x0c, 0x29, 0x4a, 0x11, 0x02}

type testSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *testSink) Deliver(f []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *testSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *testSink) get() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

type testQueue struct {
	mu           sync.Mutex
	stops, wakes int
	wake         chan struct{}
}

func newTestQueue() *testQueue { return &testQueue{wake: make(chan struct{}, 1)} }

func (q *testQueue) StopQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stops++
}

func (q *testQueue) WakeQueue() {
	q.mu.Lock()
	q.wakes++
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *testQueue) counts() (stops, wakes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stops, q.wakes
}

type testDev struct {
	*Device
	chip  *sim.Chip
	heap  *hw.Heap
	sink  *testSink
	queue *testQueue
}

func newTestDev(t *testing.T, sc sim.Config, cfg Config) *testDev {
	t.Helper()
	x := &testDev{
		heap:  hw.NewHeap(0x100000, 1<<20),
		sink:  &testSink{},
		queue: newTestQueue(),
	}
	sc.Base = testBase
	sc.Mem = x.heap
	sc.Address = testAddress
	x.chip = sim.New(sc)
	cfg.Dma = x.heap
	cfg.Sink = x.sink
	cfg.Queue = x.queue
	if cfg.InitPollInterval == 0 {
		cfg.InitPollInterval = time.Microsecond
	}
	var err error
	if x.Device, err = Attach(x.chip, testBase, cfg); err != nil {
		t.Fatal(err)
	}
	return x
}

func (x *testDev) open(t *testing.T) {
	t.Helper()
	if err := x.Open(x.StationAddress()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { x.Close() })
}

func (x *testDev) checkTx(t *testing.T) {
	t.Helper()
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.tx.check(); err != nil {
		t.Fatal(err)
	}
}

func (x *testDev) reclaimLocked() uint {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.reclaim()
}

func frame(n int, seq byte) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = seq + byte(i)
	}
	return f
}

func eventually(t *testing.T, what string, f func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProbeWIO(t *testing.T) {
	x := newTestDev(t, sim.Config{Mode: sim.WIOOnly}, Config{})
	if got, want := x.Mode(), "wio"; got != want {
		t.Errorf("mode: got %s want %s", got, want)
	}
	x.open(t)
	if err := x.Transmit(frame(60, 0)); err != nil {
		t.Fatal(err)
	}
	if _, n32 := x.chip.Accesses(); n32 != 0 {
		t.Errorf("wio chip: got %d 32 bit accesses want 0", n32)
	}
	if got := x.StationAddress(); got != testAddress {
		t.Errorf("station address: got %s want %s", got, testAddress)
	}
}

func TestProbeDWIO(t *testing.T) {
	x := newTestDev(t, sim.Config{Mode: sim.DWIOOnly}, Config{})
	if got, want := x.Mode(), "dwio"; got != want {
		t.Errorf("mode: got %s want %s", got, want)
	}
	x.chip.ResetAccesses()
	x.open(t)
	if err := x.Transmit(frame(60, 0)); err != nil {
		t.Fatal(err)
	}
	x.Interrupt()
	if n16, _ := x.chip.Accesses(); n16 != 0 {
		t.Errorf("dwio chip: got %d 16 bit accesses after probe want 0", n16)
	}
	if !x.chip.Running() {
		t.Errorf("dwio chip not running after open")
	}
}

func TestProbePrefersWIO(t *testing.T) {
	x := newTestDev(t, sim.Config{Mode: sim.WIOAndDWIO}, Config{})
	if got, want := x.Mode(), "wio"; got != want {
		t.Errorf("mode: got %s want %s", got, want)
	}
	if _, n32 := x.chip.Accesses(); n32 != 0 {
		t.Errorf("got %d 32 bit accesses want 0", n32)
	}
}

func TestProbeNotFound(t *testing.T) {
	heap := hw.NewHeap(0x100000, 1<<16)
	chip := sim.New(sim.Config{Base: testBase, Mem: heap})
	_, err := Attach(chip, testBase+0x100, Config{Dma: heap})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("got %v want %v", err, ErrDeviceNotFound)
	}
	var be *BringUpError
	if !errors.As(err, &be) || be.Step != StepProbe {
		t.Errorf("got %#v want bring up error at %v", err, StepProbe)
	}
	if got := heap.InUse(); got != 0 {
		t.Errorf("failed attach left %d bytes allocated", got)
	}
	if _, _, err = Probe(chip, testBase+0x100); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("probe: got %v want %v", err, ErrDeviceNotFound)
	}
}

func TestProbeCommand(t *testing.T) {
	heap := hw.NewHeap(0x100000, 1<<16)
	chip := sim.New(sim.Config{Base: testBase, Mem: heap, Mode: sim.DWIOOnly, Address: testAddress})
	mode, a, err := Probe(chip, testBase)
	if err != nil {
		t.Fatal(err)
	}
	if mode != "dwio" || a != testAddress {
		t.Errorf("got %s %s want dwio %s", mode, a, testAddress)
	}
}

func TestRingAllocOwnClear(t *testing.T) {
	heap := hw.NewHeap(0x100000, 1<<16)
	for log2 := uint(min_log2_ring_len); log2 <= max_log2_ring_len; log2++ {
		// Dirty the memory the ring will come from.
		b, p, err := heap.Alloc(descriptor_bytes << log2)
		if err != nil {
			t.Fatal(err)
		}
		for i := range b {
			b[i] = 0xff
		}
		heap.Free(b, p)

		var r tx_ring
		if err = r.alloc(heap, log2); err != nil {
			t.Fatal(err)
		}
		for i := uint(0); i < r.len(); i++ {
			if r.at(i).is_owned_by_device() {
				t.Fatalf("ring %d: slot %d owned by device after alloc", r.len(), i)
			}
		}
		if err = r.check(); err != nil {
			t.Error(err)
		}
		r.free(heap)
	}
	if got := heap.InUse(); got != 0 {
		t.Errorf("in use after free: got %d want 0", got)
	}
}

func TestOpen(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{RxRingLog2: 4, TxRingLog2: 3, Promiscuous: true, AutoPadTx: true})
	x.open(t)
	if !x.chip.Running() {
		t.Fatal("chip not running")
	}
	if got, want := x.chip.BCR(bcr20), uint16(bcr20_software_style_2); got != want {
		t.Errorf("bcr20: got %d want %d", got, want)
	}
	if got, want := x.chip.BCR(bcr9), uint16(bcr9_full_duplex_enable|bcr9_aui_full_duplex); got != want {
		t.Errorf("bcr9: got %d want %d", got, want)
	}
	if got := x.chip.CSR(csr15); got&csr15_promiscuous == 0 {
		t.Errorf("csr15 0x%04x: promiscuous not set", got)
	}
	if got := x.chip.CSR(csr4); got&csr4_auto_pad_xmit == 0 {
		t.Errorf("csr4 0x%04x: auto pad not set", got)
	}
	if got := StationAddress(x.chip.InitAddress()); got != testAddress {
		t.Errorf("init block address: got %s want %s", got, testAddress)
	}
	if got, want := x.init_block[2], byte(4<<4); got != want {
		t.Errorf("rlen: got 0x%x want 0x%x", got, want)
	}
	if got, want := x.init_block[3], byte(3<<4); got != want {
		t.Errorf("tlen: got 0x%x want 0x%x", got, want)
	}
	for i := uint(0); i < x.rx.len(); i++ {
		md1 := x.rx.at(i).md1()
		if md1&md1_own == 0 || md1&md1_byte_count != byte_count(default_rx_buffer_bytes) {
			t.Fatalf("rx slot %d: md1 0x%08x not armed", i, md1)
		}
	}
	if s, w := x.queue.counts(); s != 0 || w != 1 {
		t.Errorf("queue stops/wakes: got %d/%d want 0/1", s, w)
	}
	if err := x.Open(testAddress); !errors.Is(err, ErrRunning) {
		t.Errorf("second open: got %v want %v", err, ErrRunning)
	}
}

func TestInitTimeout(t *testing.T) {
	x := newTestDev(t, sim.Config{NoInitDone: true}, Config{InitPolls: 5})
	err := x.Open(x.StationAddress())
	if !errors.Is(err, ErrInitTimeout) {
		t.Fatalf("got %v want %v", err, ErrInitTimeout)
	}
	var be *BringUpError
	if !errors.As(err, &be) || be.Step != StepInit {
		t.Errorf("got %v want bring up error at %v", err, StepInit)
	}
	if got := x.chip.Starts(); got != 0 {
		t.Errorf("start written %d times", got)
	}
	if x.chip.Running() || x.chip.Status()&csr0_stop == 0 {
		t.Errorf("chip not stopped: csr0 %s", csr0String(x.chip.Status()))
	}
	if err = x.Transmit(frame(60, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("transmit: got %v want %v", err, ErrClosed)
	}
	if err = x.Detach(); err != nil {
		t.Fatal(err)
	}
	if got := x.heap.InUse(); got != 0 {
		t.Errorf("in use after detach: got %d want 0", got)
	}
}

func TestByteCount(t *testing.T) {
	for _, x := range []struct {
		n    uint
		want uint32
	}{
		{60, 0xffc4},
		{64, 0xffc0},
		{1514, 0xfa16},
		{1, 0xffff},
	} {
		if got := byte_count(x.n); got != x.want {
			t.Errorf("byte count %d: got 0x%04x want 0x%04x", x.n, got, x.want)
		}
	}
}

func TestTransmitDescriptor(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	x.open(t)
	f := frame(60, 7)
	if err := x.Transmit(f); err != nil {
		t.Fatal(err)
	}
	d := x.tx.at(0)
	md1 := d.md1()
	if got, want := md1&md1_byte_count, uint32(0xffc4); got != want {
		t.Errorf("bcnt: got 0x%04x want 0x%04x", got, want)
	}
	if want := uint32(md1_own | md1_one_frame); md1&want != want {
		t.Errorf("md1 0x%08x: own/stp/enp not set", md1)
	}
	b, ok := x.heap.Slice(d.addr(), 60)
	if !ok || !bytes.Equal(b, f) {
		t.Errorf("device view of frame: got %x want %x", b, f)
	}
	if got := x.chip.Demands(); got != 1 {
		t.Errorf("transmit demands: got %d want 1", got)
	}
	if got, want := x.tx.tx_desc(0).String(), "hw: buffer"; !strings.HasPrefix(got, want) {
		t.Errorf("descriptor string: got %q", got)
	}
	if err := x.Transmit(nil); !errors.Is(err, ErrFrameSize) {
		t.Errorf("empty frame: got %v want %v", err, ErrFrameSize)
	}
}

func TestQueueFull(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{TxRingLog2: 3})
	x.open(t)
	n := int(x.tx.len())
	for i := 0; i < n; i++ {
		if err := x.Transmit(frame(60, byte(i))); err != nil {
			t.Fatalf("transmit %d: %v", i, err)
		}
		x.checkTx(t)
	}
	if err := x.Transmit(frame(60, 0)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("transmit %d: got %v want %v", n, err, ErrQueueFull)
	}
	if s, _ := x.queue.counts(); s != 1 {
		t.Errorf("queue stops: got %d want 1", s)
	}

	// Nothing completed yet.
	if got := x.reclaimLocked(); got != 0 {
		t.Errorf("reclaim before completion: got %d want 0", got)
	}
	if got := x.chip.CompleteTx(1); got != 1 {
		t.Fatalf("complete: got %d want 1", got)
	}
	if got := x.reclaimLocked(); got != 1 {
		t.Errorf("reclaim: got %d want 1", got)
	}
	x.checkTx(t)
	if err := x.Transmit(frame(60, 0)); err != nil {
		t.Fatalf("transmit after reclaim: %v", err)
	}
	x.checkTx(t)
	if err := x.Transmit(frame(60, 0)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second transmit after reclaim: got %v want %v", err, ErrQueueFull)
	}
	c := x.Counters()
	if c[TxPackets] != 1 || c[TxBytes] != 60 {
		t.Errorf("tx packets/bytes: got %d/%d want 1/60", c[TxPackets], c[TxBytes])
	}
}

func TestReclaimErrors(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	x.open(t)
	for i := 0; i < 3; i++ {
		if err := x.Transmit(frame(100, byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	x.chip.CompleteTx(1)
	x.chip.FailTx(1, md2_tx_underflow|md2_tx_late_collison)
	x.chip.FailTx(1, md2_tx_retry_error)
	if got := x.reclaimLocked(); got != 3 {
		t.Fatalf("reclaim: got %d want 3", got)
	}
	x.checkTx(t)
	c := x.Counters()
	for _, e := range []struct {
		c    Counter
		want uint64
	}{
		{TxPackets, 1},
		{TxBytes, 100},
		{TxErrors, 2},
		{TxUnderflowErrors, 1},
		{TxLateCollisionErrors, 1},
		{TxRetryErrors, 1},
		{TxLostCarrierErrors, 0},
	} {
		if got := c[e.c]; got != e.want {
			t.Errorf("%v: got %d want %d", e.c, got, e.want)
		}
	}
	if x.tx.n_in_flight != 0 {
		t.Errorf("in flight: got %d want 0", x.tx.n_in_flight)
	}
}

func TestDrainEmpty(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	x.open(t)
	if got := x.drain(); got != 0 {
		t.Errorf("drain: got %d want 0", got)
	}
	if x.rx.current != 0 || x.sink.len() != 0 {
		t.Errorf("drain moved current to %d, delivered %d", x.rx.current, x.sink.len())
	}
}

func TestDrainInOrder(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{RxRingLog2: 3})
	x.open(t)
	const k = 5
	var sent [][]byte
	for i := 0; i < k; i++ {
		f := frame(60+i, byte(i*16))
		sent = append(sent, f)
		if !x.chip.Receive(f) {
			t.Fatalf("receive %d refused", i)
		}
	}
	if got := x.drain(); got != k {
		t.Fatalf("drain: got %d want %d", got, k)
	}
	got := x.sink.get()
	if len(got) != k {
		t.Fatalf("delivered: got %d want %d", len(got), k)
	}
	for i := range got {
		if !bytes.Equal(got[i], sent[i]) {
			t.Errorf("frame %d: got %x want %x", i, got[i], sent[i])
		}
	}
	for i := uint(0); i < k; i++ {
		if !x.rx.at(i).is_owned_by_device() {
			t.Errorf("slot %d not re-armed", i)
		}
		if md2 := x.rx.at(i).md2(); md2 != 0 {
			t.Errorf("slot %d: md2 0x%x not cleared", i, md2)
		}
	}
	if got, want := x.rx.current, uint(k); got != want {
		t.Errorf("current: got %d want %d", got, want)
	}
	c := x.Counters()
	if c[RxPackets] != k || c[RxBytes] != 60*k+10 {
		t.Errorf("rx packets/bytes: got %d/%d", c[RxPackets], c[RxBytes])
	}

	// Wraps around the ring.
	for i := 0; i < 6; i++ {
		x.chip.Receive(frame(64, byte(i)))
	}
	if got := x.drain(); got != 6 {
		t.Errorf("drain after wrap: got %d want 6", got)
	}
	if got, want := x.rx.current, uint(3); got != want {
		t.Errorf("current after wrap: got %d want %d", got, want)
	}
}

func TestDrainErrors(t *testing.T) {
	fail := false
	x := newTestDev(t, sim.Config{}, Config{
		RxRingLog2: 2,
		AllocFrame: func(n int) []byte {
			if fail {
				return nil
			}
			return make([]byte, n)
		},
	})
	x.open(t)
	x.chip.ReceiveStatus(frame(60, 0), md1_err|md1_crc)
	x.chip.ReceiveStatus(frame(60, 0), md1_err|md1_fram)
	x.chip.Receive(frame(2000, 0))
	if got := x.drain(); got != 3 {
		t.Fatalf("drain: got %d want 3", got)
	}
	fail = true
	x.chip.Receive(frame(60, 0))
	if got := x.drain(); got != 1 {
		t.Fatalf("drain: got %d want 1", got)
	}
	if got := x.sink.len(); got != 0 {
		t.Errorf("delivered %d bad frames", got)
	}
	for i := uint(0); i < x.rx.len(); i++ {
		if !x.rx.at(i).is_owned_by_device() {
			t.Errorf("slot %d not re-armed", i)
		}
	}
	c := x.Counters()
	for _, e := range []struct {
		c    Counter
		want uint64
	}{
		{RxErrors, 3},
		{RxCrcErrors, 1},
		{RxFramingErrors, 1},
		{RxBufferErrors, 1},
		{RxLengthErrors, 0},
		{RxDropped, 1},
		{RxPackets, 0},
	} {
		if got := c[e.c]; got != e.want {
			t.Errorf("%v: got %d want %d", e.c, got, e.want)
		}
	}
}

func TestInterruptDeviceErrors(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	x.open(t)
	x.chip.RaiseStatus(csr0_cerr | csr0_babl | csr0_merr | csr0_miss)
	x.Interrupt()
	c := x.Counters()
	for _, e := range []struct {
		c    Counter
		want uint64
	}{
		{Collisions, 1},
		{BabbleErrors, 1},
		{MemoryErrors, 1},
		{RxMissed, 1},
		{RxErrors, 1},
	} {
		if got := c[e.c]; got != e.want {
			t.Errorf("%v: got %d want %d", e.c, got, e.want)
		}
	}
	// All causes acknowledged and interrupts back on without deferral.
	v := x.chip.Status()
	if v&(csr0_intr|csr0_idon|csr0_cerr|csr0_babl|csr0_merr|csr0_miss) != 0 || v&csr0_iena == 0 {
		t.Errorf("csr0 after interrupt: %s", csr0String(v))
	}
	if v&csr0_init == 0 && v&csr0_start == 0 {
		t.Errorf("command bits lost: %s", csr0String(v))
	}
	if x.task.pending.Load() {
		t.Errorf("deferred task scheduled for error causes")
	}
}

func TestInterruptDefers(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	x.open(t)
	x.Interrupt()
	f := frame(60, 1)
	x.chip.Receive(f)
	if err := x.Transmit(frame(80, 2)); err != nil {
		t.Fatal(err)
	}
	x.chip.CompleteTx(1)
	x.Interrupt()
	eventually(t, "receive", func() bool { return x.sink.len() == 1 })
	eventually(t, "interrupt enable", func() bool { return x.chip.Status()&csr0_iena != 0 })
	eventually(t, "reclaim", func() bool { return x.Counters()[TxPackets] == 1 })
	if got := x.sink.get()[0]; !bytes.Equal(got, f) {
		t.Errorf("frame: got %x want %x", got, f)
	}
	x.checkTx(t)
}

func TestDeferredTaskSchedule(t *testing.T) {
	var task deferred_task
	ran := make(chan struct{}, 4)
	release := make(chan struct{})
	task.start(func() {
		<-release
		ran <- struct{}{}
		task.pending.Store(false)
	})
	if !task.schedule() {
		t.Fatal("first schedule refused")
	}
	if task.schedule() {
		t.Error("second schedule accepted while pending")
	}
	close(release)
	<-ran
	eventually(t, "task done", func() bool { return !task.pending.Load() })
	if !task.schedule() {
		t.Error("schedule after run refused")
	}
	<-ran
	task.halt()()
	select {
	case <-ran:
		t.Error("task ran more than scheduled")
	default:
	}
}

// A schedule while the task runs, after it has cleared pending, must run
// it again.
func TestDeferredTaskScheduleWhileRunning(t *testing.T) {
	var task deferred_task
	started := make(chan struct{}, 4)
	release := make(chan struct{}, 4)
	task.start(func() {
		task.pending.Store(false)
		started <- struct{}{}
		<-release
	})
	if !task.schedule() {
		t.Fatal("first schedule refused")
	}
	<-started
	if !task.schedule() {
		t.Fatal("schedule while running refused")
	}
	release <- struct{}{}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run again")
	}
	release <- struct{}{}
	task.halt()()
}

func TestCloseDetach(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	if err := x.Open(x.StationAddress()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := x.Transmit(frame(60, byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := x.Detach(); !errors.Is(err, ErrRunning) {
		t.Errorf("detach running: got %v want %v", err, ErrRunning)
	}
	if err := x.Close(); err != nil {
		t.Fatal(err)
	}
	if x.chip.Running() {
		t.Error("chip running after close")
	}
	if err := x.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second close: got %v want %v", err, ErrClosed)
	}
	if err := x.Transmit(frame(60, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("transmit after close: got %v want %v", err, ErrClosed)
	}
	// Rings stay for inspection.
	if !x.tx.allocated() || x.tx.n_in_flight != 3 {
		t.Errorf("tx ring after close: allocated %v in flight %d", x.tx.allocated(), x.tx.n_in_flight)
	}
	if err := x.Detach(); err != nil {
		t.Fatal(err)
	}
	if got := x.heap.InUse(); got != 0 {
		t.Errorf("in use after detach: got %d want 0", got)
	}
	if err := x.Open(testAddress); !errors.Is(err, ErrDetached) {
		t.Errorf("open after detach: got %v want %v", err, ErrDetached)
	}
}

func TestReopen(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{})
	var last uint
	for i := 0; i < 3; i++ {
		if err := x.Open(x.StationAddress()); err != nil {
			t.Fatal(err)
		}
		if err := x.Transmit(frame(60, 0)); err != nil {
			t.Fatal(err)
		}
		use := x.heap.InUse()
		if i > 0 && use != last {
			t.Errorf("open %d: heap use %d want %d", i, use, last)
		}
		last = use
		if err := x.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestShowRings(t *testing.T) {
	x := newTestDev(t, sim.Config{}, Config{RxRingLog2: 1, TxRingLog2: 1})
	x.open(t)
	var b bytes.Buffer
	x.ShowRings(&b, true)
	for _, want := range []string{
		"pcnet-c000: running, wio mode, address 00:0c:29:4a:11:02",
		"rx ring @",
		"tx ring @",
		"000 0x0000: hw: bytes 1528\n",
		"001 0x0001: sw: buffer",
	} {
		if !bytes.Contains(b.Bytes(), []byte(want)) {
			t.Errorf("missing %q in:\n%s", want, b.String())
		}
	}

	if err := x.Close(); err != nil {
		t.Fatal(err)
	}
	b.Reset()
	x.ShowRings(&b, true)
	for _, want := range []string{
		"pcnet-c000: stopped",
		"000 0x0000: hw: buffer",
	} {
		if !bytes.Contains(b.Bytes(), []byte(want)) {
			t.Errorf("stopped: missing %q in:\n%s", want, b.String())
		}
	}
}

func TestConfigValidate(t *testing.T) {
	heap := hw.NewHeap(0, 64)
	for _, x := range []struct {
		cfg Config
		ok  bool
	}{
		{Config{Dma: heap}, true},
		{Config{}, false},
		{Config{Dma: heap, RxRingLog2: 10}, false},
		{Config{Dma: heap, TxRingLog2: 12}, false},
		{Config{Dma: heap, RxBufferBytes: 32}, false},
		{Config{Dma: heap, RxBufferBytes: 4096}, false},
		{Config{Dma: heap, InitPollInterval: -1}, false},
	} {
		c := x.cfg
		c.defaults(testBase)
		if err := c.Validate(); (err == nil) != x.ok {
			t.Errorf("%+v: got %v want ok %v", x.cfg, err, x.ok)
		}
	}
}
