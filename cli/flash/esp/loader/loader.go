//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package loader talks to the ESP ROM bootloader: sync, chip identification,
// baud rate change and block-wise flashing.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flash/esp"
	"github.com/plant-monitor/espflash/cli/flash/esp/frame"
	"github.com/plant-monitor/espflash/common/fwimage"
)

const (
	DefaultCommandTimeout = 2000 * time.Millisecond
	DefaultSyncTimeout    = 100 * time.Millisecond

	syncAttempts         = 10
	syncReadsPerAttempt  = 8
	postSyncDelay        = 100 * time.Millisecond
	baudRateSettleDelay  = 500 * time.Millisecond
	flashBlockSize       = 512
	flashDataHeaderLen   = 16
	eraseTimeoutPerMByte = 30 * time.Second

	spiFlashSize       = 4 * 1024 * 1024
	spiFlashBlockSize  = 0x10000
	spiFlashSectorSize = 0x1000
	spiFlashPageSize   = 0x100
	spiFlashStatusMask = 0xffff
)

var (
	// ErrNoResponse is the cause of errors for commands that got no valid
	// response: timeout, malformed or mismatched frame, transport closure.
	ErrNoResponse = errors.New("no response")
	// ErrUnresponsive is returned when sync fails after all attempts.
	ErrUnresponsive = errors.New("device unresponsive")
)

type State int

const (
	StateIdle State = iota
	StateSyncing
	StateIdentifying
	StateFlashing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSyncing:
		return "Syncing"
	case StateIdentifying:
		return "Identifying"
	case StateFlashing:
		return "Flashing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("???(%d)", int(s))
	}
}

// Transport is what the loader needs from the serial connection.
// *transport.Controller implements it.
type Transport interface {
	Connect(ctx context.Context, baudRate uint) error
	Disconnect() error
	Write(ctx context.Context, data []byte) error
	ResetPulse(ctx context.Context) error
	Closed() <-chan struct{}
}

type ProgressFunc func(partitionID string, percent int)

type LogFunc func(line string)

type Options struct {
	Progress ProgressFunc
	Log      LogFunc
	// Switch to this baud rate after identification. 0 means no change.
	FlashBaudRate  uint
	CommandTimeout time.Duration
	// How long to wait for each of the responses to a sync attempt.
	SyncTimeout time.Duration
	// Delay between the two halves of a baud rate change.
	SettleDelay time.Duration
	// Leave the chip in the loader when done.
	NoReset bool
}

type Loader struct {
	t    Transport
	opts Options

	lock    sync.Mutex
	state   State
	pending *responseSlot

	chip     esp.ChipFamily
	efuses   [4]uint32
	mac      [6]byte
	spiReady bool
}

func New(t Transport, opts Options) *Loader {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = baudRateSettleDelay
	}
	if opts.Progress == nil {
		opts.Progress = func(string, int) {}
	}
	if opts.Log == nil {
		opts.Log = func(line string) { glog.Infof("%s", line) }
	}
	return &Loader{t: t, opts: opts}
}

func (l *Loader) State() State {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.state
}

func (l *Loader) setState(s State) {
	l.lock.Lock()
	defer l.lock.Unlock()
	glog.V(1).Infof("%s -> %s", l.state, s)
	l.state = s
}

func (l *Loader) ChipFamily() esp.ChipFamily {
	return l.chip
}

func (l *Loader) MAC() [6]byte {
	return l.mac
}

func (l *Loader) logf(format string, args ...interface{}) {
	l.opts.Log(fmt.Sprintf(format, args...))
}

// Run performs the whole session: sync, identify, optional baud rate change,
// flash every partition in the given order and reset the chip.
// On failure the loader ends up in StateFailed and the log sink gets a
// final message.
func (l *Loader) Run(ctx context.Context, parts []*fwimage.Partition) error {
	err := l.run(ctx, parts)
	if err != nil {
		l.setState(StateFailed)
		l.logf("Flashing failed: %s", err)
		return errors.Trace(err)
	}
	l.setState(StateDone)
	l.logf("Done.")
	return nil
}

func (l *Loader) run(ctx context.Context, parts []*fwimage.Partition) error {
	if err := l.Sync(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := sleep(ctx, postSyncDelay); err != nil {
		return errors.Trace(err)
	}
	if err := l.Identify(ctx); err != nil {
		return errors.Trace(err)
	}
	if l.opts.FlashBaudRate > 0 {
		if err := l.ChangeBaudRate(ctx, l.opts.FlashBaudRate); err != nil {
			return errors.Trace(err)
		}
	}
	l.setState(StateFlashing)
	for i, p := range parts {
		l.logf("Flashing section %d (%s)", i, p.Name)
		if err := l.FlashPartition(ctx, p.Name, p.Offset, p.Data()); err != nil {
			return errors.Annotatef(err, "%s", p.Name)
		}
	}
	if l.opts.NoReset {
		return nil
	}
	return errors.Trace(l.t.ResetPulse(ctx))
}

// Sync establishes contact with the ROM.
func (l *Loader) Sync(ctx context.Context) error {
	l.setState(StateSyncing)
	payload := frame.SyncPayload()
	for i := 1; i <= syncAttempts; i++ {
		l.logf("Sync attempt #%d of %d", i, syncAttempts)
		slot := l.expect(frame.OpSync)
		if err := l.send(ctx, frame.OpSync, payload, 0); err != nil {
			l.clear(slot)
			l.setState(StateFailed)
			return errors.Trace(err)
		}
		numResponses := 0
		for j := 0; j < syncReadsPerAttempt; j++ {
			if j > 0 {
				slot = l.expect(frame.OpSync)
			}
			r, err := l.await(ctx, slot, l.opts.SyncTimeout)
			l.clear(slot)
			if err != nil {
				if errors.Cause(err) == ErrNoResponse {
					continue
				}
				l.setState(StateFailed)
				return errors.Trace(err)
			}
			if r.Len() > 1 && r.U16() == 0 {
				numResponses++
			}
		}
		if numResponses > 0 {
			glog.V(1).Infof("got %d sync responses", numResponses)
			l.setState(StateIdentifying)
			return nil
		}
	}
	l.setState(StateFailed)
	return errors.Trace(ErrUnresponsive)
}

// Identify reads the chip family and the eFuse-derived MAC address.
// Registers that cannot be read count as zero.
func (l *Loader) Identify(ctx context.Context) error {
	l.setState(StateIdentifying)
	id, err := l.readRegLenient(ctx, esp.ChipIDReg)
	if err != nil {
		return errors.Trace(err)
	}
	l.chip = esp.ChipFamilyFromID(id)
	base := l.chip.EfuseBase()
	for i := range l.efuses {
		v, err := l.readRegLenient(ctx, base+uint32(4*i))
		if err != nil {
			return errors.Trace(err)
		}
		l.efuses[i] = v
	}
	l.mac = esp.MACFromEfuses(l.efuses)
	l.logf("Chip family: %s", l.chip)
	l.logf("MAC Address: %s", esp.MACString(l.mac))
	return nil
}

// ReadReg reads a 32-bit register.
func (l *Loader) ReadReg(ctx context.Context, addr uint32) (uint32, error) {
	w := frame.NewWriter(4).U32(addr)
	r, err := l.command(ctx, frame.OpReadReg, w.Get(), 0, l.opts.CommandTimeout)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read 0x%08x", addr)
	}
	if st, ok := r.Status(); !ok || st != 0 {
		return 0, errors.Errorf("failed to read 0x%08x: status %d", addr, st)
	}
	glog.V(2).Infof("0x%08x = 0x%08x", addr, r.Value)
	return r.Value, nil
}

// Only transport failures are returned as errors.
func (l *Loader) readRegLenient(ctx context.Context, addr uint32) (uint32, error) {
	v, err := l.ReadReg(ctx, addr)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil || l.isClosed() {
		return 0, errors.Trace(err)
	}
	glog.Warningf("%s", err)
	return 0, nil
}

// ChangeBaudRate switches both the device and the host to a new rate.
// The first response may arrive garbled and is ignored, the confirmation
// sent at the new rate must be answered.
func (l *Loader) ChangeBaudRate(ctx context.Context, rate uint) error {
	if err := esp.CheckBaudRate(rate); err != nil {
		return errors.Trace(err)
	}
	payload := frame.NewWriter(8).U32(uint32(rate)).U32(0).Get()
	glog.V(1).Infof("Sending baud rate change command: %d", rate)
	if _, err := l.command(ctx, frame.OpChangeBaudRate, payload, 0, l.opts.CommandTimeout); err != nil {
		if errors.Cause(err) != ErrNoResponse {
			return errors.Trace(err)
		}
		glog.V(1).Infof("no response to baud rate change, continuing")
	}
	if err := sleep(ctx, l.opts.SettleDelay); err != nil {
		return errors.Trace(err)
	}
	if err := l.t.Disconnect(); err != nil {
		return errors.Annotatef(err, "failed to close port")
	}
	if err := l.t.Connect(ctx, rate); err != nil {
		return errors.Annotatef(err, "failed to reopen port at %d", rate)
	}
	if _, err := l.command(ctx, frame.OpChangeBaudRate, payload, 0, l.opts.CommandTimeout); err != nil {
		return errors.Annotatef(err, "device did not confirm baud rate %d", rate)
	}
	l.logf("Changed baud rate to %d", rate)
	return nil
}

// FlashPartition writes data at offset. SPI is set up before the first
// partition of the session.
func (l *Loader) FlashPartition(ctx context.Context, name string, offset uint32, data []byte) error {
	if !l.spiReady {
		if err := l.attachSPI(ctx); err != nil {
			return errors.Trace(err)
		}
		l.spiReady = true
	}
	l.logf("Writing %d bytes to 0x%x", len(data), offset)
	numBlocks := (len(data) + flashBlockSize - 1) / flashBlockSize
	begin := frame.NewWriter(16).
		U32(uint32(len(data))).
		U32(uint32(numBlocks)).
		U32(flashBlockSize).
		U32(offset).
		Get()
	if err := l.checkedCommand(ctx, frame.OpFlashBegin, begin, 0, flashBeginTimeout(numBlocks)); err != nil {
		return errors.Annotatef(err, "failed to start flashing at 0x%x", offset)
	}
	w := frame.NewWriter(flashDataHeaderLen + flashBlockSize)
	block := make([]byte, flashBlockSize)
	for seq := 0; seq < numBlocks; seq++ {
		start := seq * flashBlockSize
		n := copy(block, data[start:])
		for i := n; i < flashBlockSize; i++ {
			block[i] = 0xff
		}
		w.Reset()
		w.U32(flashBlockSize).U32(uint32(seq)).U32(0).U32(0).Bytes(block)
		if err := l.checkedCommand(ctx, frame.OpFlashData, w.Get(), frame.Checksum(block), l.opts.CommandTimeout); err != nil {
			return errors.Annotatef(err, "failed to write block %d @ 0x%x", seq, offset+uint32(start))
		}
		l.opts.Progress(name, 100*(start+n)/len(data))
	}
	if numBlocks == 0 {
		l.opts.Progress(name, 100)
	}
	// No FLASH_END: the ROM would leave the loader and we may have more to write.
	return nil
}

func (l *Loader) attachSPI(ctx context.Context) error {
	attach := frame.NewWriter(8).U32(0).U32(0).Get()
	if err := l.checkedCommand(ctx, frame.OpSPIAttach, attach, 0, l.opts.CommandTimeout); err != nil {
		return errors.Annotatef(err, "failed to attach SPI flash")
	}
	params := frame.NewWriter(24).
		U32(0).
		U32(spiFlashSize).
		U32(spiFlashBlockSize).
		U32(spiFlashSectorSize).
		U32(spiFlashPageSize).
		U32(spiFlashStatusMask).
		Get()
	if err := l.checkedCommand(ctx, frame.OpSPISetParams, params, 0, l.opts.CommandTimeout); err != nil {
		return errors.Annotatef(err, "failed to set SPI params")
	}
	return nil
}

// The ROM erases the region before answering FLASH_BEGIN.
func flashBeginTimeout(numBlocks int) time.Duration {
	size := time.Duration(numBlocks * flashBlockSize)
	return eraseTimeoutPerMByte*size/1000000 + 500*time.Millisecond
}

// checkedCommand requires a response with zero status.
func (l *Loader) checkedCommand(ctx context.Context, op frame.Opcode, payload []byte, checksum uint32, timeout time.Duration) error {
	r, err := l.command(ctx, op, payload, checksum, timeout)
	if err != nil {
		return errors.Trace(err)
	}
	st, ok := r.Status()
	if !ok {
		return errors.Errorf("%s: short response (%d bytes)", op, r.Len())
	}
	if st != 0 {
		return errors.Errorf("%s: error status %d (%d)", op, st, r.Data[1])
	}
	return nil
}

func (l *Loader) command(ctx context.Context, op frame.Opcode, payload []byte, checksum uint32, timeout time.Duration) (*frame.Response, error) {
	slot := l.expect(op)
	defer l.clear(slot)
	if err := l.send(ctx, op, payload, checksum); err != nil {
		return nil, errors.Trace(err)
	}
	return l.await(ctx, slot, timeout)
}

func (l *Loader) send(ctx context.Context, op frame.Opcode, payload []byte, checksum uint32) error {
	glog.V(2).Infof("-> %s (%d)", op, len(payload))
	return errors.Annotatef(l.t.Write(ctx, frame.Escape(frame.EncodeCommand(op, payload, checksum))), "%s", op)
}

func (l *Loader) isClosed() bool {
	select {
	case <-l.t.Closed():
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
