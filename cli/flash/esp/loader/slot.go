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
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flash/esp/frame"
)

// responseSlot is a one-shot handle for the response to the command in
// flight. Whoever resolves it first wins, later attempts are no-ops.
type responseSlot struct {
	op   frame.Opcode
	ch   chan []byte
	once sync.Once
}

func newResponseSlot(op frame.Opcode) *responseSlot {
	return &responseSlot{op: op, ch: make(chan []byte, 1)}
}

// resolve delivers a raw frame, nil meaning no response.
func (s *responseSlot) resolve(f []byte) bool {
	resolved := false
	s.once.Do(func() {
		s.ch <- f
		resolved = true
	})
	return resolved
}

// HandleFrame is the sink for frames coming out of the de-framer.
// Frames that arrive when no command is waiting are dropped.
func (l *Loader) HandleFrame(f []byte) {
	l.lock.Lock()
	slot := l.pending
	l.lock.Unlock()
	if slot == nil || !slot.resolve(f) {
		glog.V(1).Infof("dropping unexpected frame: %s", frame.LimitStr(f, 32))
	}
}

// expect installs a new slot. Must be called before the command is sent.
func (l *Loader) expect(op frame.Opcode) *responseSlot {
	slot := newResponseSlot(op)
	l.lock.Lock()
	l.pending = slot
	l.lock.Unlock()
	return slot
}

func (l *Loader) clear(slot *responseSlot) {
	slot.resolve(nil)
	l.lock.Lock()
	if l.pending == slot {
		l.pending = nil
	}
	l.lock.Unlock()
}

// await waits for the slot to be resolved and decodes the response.
// Timeout, transport closure and invalid frames all yield ErrNoResponse.
func (l *Loader) await(ctx context.Context, slot *responseSlot, timeout time.Duration) (*frame.Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var f []byte
	select {
	case f = <-slot.ch:
	case <-timer.C:
		slot.resolve(nil)
		glog.V(2).Infof("%s: timed out after %s", slot.op, timeout)
		return nil, errors.Annotatef(ErrNoResponse, "%s: timed out", slot.op)
	case <-l.t.Closed():
		slot.resolve(nil)
		return nil, errors.Annotatef(ErrNoResponse, "%s: port closed", slot.op)
	case <-ctx.Done():
		slot.resolve(nil)
		return nil, errors.Trace(ctx.Err())
	}
	if f == nil {
		return nil, errors.Annotatef(ErrNoResponse, "%s", slot.op)
	}
	r, ok := frame.DecodeResponse(f, slot.op)
	if !ok {
		return nil, errors.Annotatef(ErrNoResponse, "%s: invalid response %s", slot.op, frame.LimitStr(f, 16))
	}
	glog.V(2).Infof("<- %s value=0x%x data=%s", slot.op, r.Value, frame.LimitStr(r.Data, 16))
	return r, nil
}
