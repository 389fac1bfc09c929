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

// Package transport owns the serial connection to the device.
package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flash/esp"
)

const (
	// Reads return (with pseudo-EOF) after this much silence on the line,
	// which lets the read loop notice disconnection.
	interCharacterTimeout = 100 * time.Millisecond

	readBufSize = 255

	readRetryDelay = 10 * time.Millisecond

	// Reset into bootloader. These are dictated by the board's auto-reset
	// circuit and must not be changed.
	resetHoldTime = 100 * time.Millisecond
	bootHoldTime  = 50 * time.Millisecond
)

// Port is the byte-duplex connection with two control lines.
type Port interface {
	io.ReadWriteCloser
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
}

// Opener opens the named port at the given baud rate, 8N1, no flow control.
type Opener func(portName string, baudRate uint) (Port, error)

// SerialOpener opens a real serial port.
func SerialOpener(portName string, baudRate uint) (Port, error) {
	s, err := serial.Open(serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		HardwareFlowControl:   false,
		InterCharacterTimeout: uint(interCharacterTimeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", portName)
	}
	return s, nil
}

// Controller manages the open/closed lifecycle of a port and pumps incoming
// bytes to the consumer from a background goroutine.
type Controller struct {
	portName string
	open     Opener
	consumer func(data []byte)
	logf     func(format string, args ...interface{})

	lock     sync.Mutex
	port     Port
	isOpen   bool
	baudRate uint
	readDone chan struct{}
	closed   chan struct{}

	writeLock sync.Mutex
}

// NewController creates a controller for portName in the Closed state.
// consumer is called from the read loop with each chunk received.
func NewController(portName string, open Opener, consumer func(data []byte)) *Controller {
	if open == nil {
		open = SerialOpener
	}
	closed := make(chan struct{})
	close(closed)
	return &Controller{
		portName: portName,
		open:     open,
		consumer: consumer,
		logf:     glog.Infof,
		closed:   closed,
	}
}

// SetLogger redirects user-visible transport messages ("port opened" etc).
func (c *Controller) SetLogger(logf func(format string, args ...interface{})) {
	c.logf = logf
}

func (c *Controller) Connect(ctx context.Context, baudRate uint) error {
	if err := esp.CheckBaudRate(baudRate); err != nil {
		return errors.Trace(err)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.isOpen {
		return errors.Errorf("%s is already open", c.portName)
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	glog.V(1).Infof("opening %s @ %d...", c.portName, baudRate)
	p, err := c.open(c.portName, baudRate)
	if err != nil {
		return errors.Trace(err)
	}
	c.port = p
	c.isOpen = true
	c.baudRate = baudRate
	c.readDone = make(chan struct{})
	c.closed = make(chan struct{})
	go c.readLoop(p, c.readDone)
	c.logf("Serial port %s opened at %d bps.", c.portName, baudRate)
	return nil
}

// Disconnect stops the read loop and closes the port. No-op if not open.
func (c *Controller) Disconnect() error {
	c.lock.Lock()
	if !c.isOpen {
		c.lock.Unlock()
		return nil
	}
	c.isOpen = false
	p, readDone, closed := c.port, c.readDone, c.closed
	c.port = nil
	c.lock.Unlock()

	// Wake up anyone waiting for a response.
	close(closed)

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	<-readDone
	err := p.Close()
	c.logf("Serial port %s closed.", c.portName)
	return errors.Trace(err)
}

// Write sends data to the device. Writes are serialized.
func (c *Controller) Write(ctx context.Context, data []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	c.lock.Lock()
	p, isOpen := c.port, c.isOpen
	c.lock.Unlock()
	if !isOpen {
		return errors.Errorf("%s is not open", c.portName)
	}
	for written := 0; written < len(data); {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		n, err := p.Write(data[written:])
		if err != nil {
			return errors.Annotatef(err, "write to %s failed", c.portName)
		}
		written += n
	}
	return nil
}

// ResetPulse toggles DTR and RTS to reset the chip.
func (c *Controller) ResetPulse(ctx context.Context) error {
	c.lock.Lock()
	p, isOpen := c.port, c.isOpen
	c.lock.Unlock()
	if !isOpen {
		return errors.Errorf("%s is not open", c.portName)
	}
	if err := setLines(p, false, true); err != nil {
		return errors.Trace(err)
	}
	if err := sleep(ctx, resetHoldTime); err != nil {
		return errors.Trace(err)
	}
	if err := setLines(p, true, false); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sleep(ctx, bootHoldTime))
}

func (c *Controller) IsOpen() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.isOpen
}

func (c *Controller) BaudRate() uint {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.baudRate
}

// Closed returns a channel that is closed when the current connection goes
// away. If the controller is not open, the channel is already closed.
func (c *Controller) Closed() <-chan struct{} {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

func (c *Controller) readLoop(p Port, done chan struct{}) {
	defer close(done)
	buf := make([]byte, readBufSize)
	for c.IsOpen() {
		n, err := p.Read(buf)
		if n > 0 && c.consumer != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.consumer(data)
		}
		if err == nil {
			continue
		}
		if !c.IsOpen() {
			break
		}
		if errors.Cause(err) == io.EOF {
			// Inter-character timeout, nothing to read.
			continue
		}
		glog.Errorf("%s: read error: %s, restarting read", c.portName, err)
		time.Sleep(readRetryDelay)
	}
	glog.V(1).Infof("%s: left read loop", c.portName)
}

func setLines(p Port, dtr, rts bool) error {
	if err := p.SetDTR(dtr); err != nil {
		return errors.Annotatef(err, "failed to set DTR")
	}
	if err := p.SetRTS(rts); err != nil {
		return errors.Annotatef(err, "failed to set RTS")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
