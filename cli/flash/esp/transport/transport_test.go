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
package transport

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
)

type lineState struct {
	dtr, rts bool
	at       time.Time
}

type fakePort struct {
	lock    sync.Mutex
	rx      chan []byte
	tx      bytes.Buffer
	lines   []lineState
	closed  bool
	readErr error
}

func newFakePort() *fakePort {
	return &fakePort{rx: make(chan []byte, 16)}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.lock.Lock()
	if err := p.readErr; err != nil {
		p.readErr = nil
		p.lock.Unlock()
		return 0, err
	}
	p.lock.Unlock()
	select {
	case data := <-p.rx:
		return copy(buf, data), nil
	case <-time.After(5 * time.Millisecond):
		return 0, io.EOF
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return 0, errors.New("closed")
	}
	return p.tx.Write(data)
}

func (p *fakePort) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetDTR(v bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.lines = append(p.lines, lineState{dtr: v, at: time.Now()})
	return nil
}

func (p *fakePort) SetRTS(v bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.lines[len(p.lines)-1].rts = v
	return nil
}

type collector struct {
	lock sync.Mutex
	data []byte
}

func (c *collector) add(data []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.data = append(c.data, data...)
}

func (c *collector) get() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]byte(nil), c.data...)
}

func newTestController(p *fakePort, consumer func([]byte)) (*Controller, *[]uint) {
	var rates []uint
	c := NewController("fake", func(name string, rate uint) (Port, error) {
		rates = append(rates, rate)
		return p, nil
	}, consumer)
	c.SetLogger(func(string, ...interface{}) {})
	return c, &rates
}

func TestConnectReadWriteDisconnect(t *testing.T) {
	p := newFakePort()
	col := &collector{}
	c, rates := newTestController(p, col.add)
	ctx := context.Background()

	if err := c.Connect(ctx, 9600); err == nil {
		t.Fatalf("expected unsupported baud rate error")
	}
	if err := c.Connect(ctx, 115200); err != nil {
		t.Fatalf("connect: %s", err)
	}
	if !c.IsOpen() || c.BaudRate() != 115200 {
		t.Fatalf("unexpected state after connect")
	}
	if err := c.Connect(ctx, 115200); err == nil {
		t.Fatalf("expected error connecting twice")
	}
	select {
	case <-c.Closed():
		t.Fatalf("closed channel must not fire while open")
	default:
	}

	p.rx <- []byte("hello ")
	p.lock.Lock()
	p.readErr = errors.New("glitch")
	p.lock.Unlock()
	p.rx <- []byte("world")
	deadline := time.Now().Add(2 * time.Second)
	for string(col.get()) != "hello world" {
		if time.Now().After(deadline) {
			t.Fatalf("read loop did not deliver data, got %q", col.get())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Write(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %s", err)
	}
	if !bytes.Equal(p.tx.Bytes(), []byte{1, 2, 3}) {
		t.Fatalf("unexpected tx % x", p.tx.Bytes())
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %s", err)
	}
	if c.IsOpen() || !p.closed {
		t.Fatalf("port not closed")
	}
	select {
	case <-c.Closed():
	default:
		t.Fatalf("closed channel did not fire")
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %s", err)
	}
	if err := c.Write(ctx, []byte{1}); err == nil {
		t.Fatalf("expected write to fail when closed")
	}
	if !reflect.DeepEqual(*rates, []uint{115200}) {
		t.Fatalf("unexpected opens: %v", *rates)
	}
}

func TestReconnect(t *testing.T) {
	p := newFakePort()
	c, rates := newTestController(p, nil)
	ctx := context.Background()
	if err := c.Connect(ctx, 115200); err != nil {
		t.Fatal(err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	p.closed = false
	if err := c.Connect(ctx, 921600); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	if !reflect.DeepEqual(*rates, []uint{115200, 921600}) {
		t.Fatalf("unexpected opens: %v", *rates)
	}
}

func TestResetPulse(t *testing.T) {
	p := newFakePort()
	c, _ := newTestController(p, nil)
	ctx := context.Background()
	if err := c.ResetPulse(ctx); err == nil {
		t.Fatalf("expected error when closed")
	}
	if err := c.Connect(ctx, 115200); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	start := time.Now()
	if err := c.ResetPulse(ctx); err != nil {
		t.Fatal(err)
	}
	if el := time.Since(start); el < resetHoldTime+bootHoldTime {
		t.Fatalf("reset pulse too short: %s", el)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.lines) != 2 {
		t.Fatalf("want 2 line changes, got %d", len(p.lines))
	}
	if p.lines[0].dtr || !p.lines[0].rts || !p.lines[1].dtr || p.lines[1].rts {
		t.Fatalf("unexpected line sequence %+v", p.lines)
	}
	if d := p.lines[1].at.Sub(p.lines[0].at); d < resetHoldTime {
		t.Fatalf("lines held for %s only", d)
	}
}
