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
package frame

import (
	"github.com/golang/glog"
)

// Deframer splits the raw byte stream coming from the device into SLIP
// frames and plain text lines (the ROM prints its boot log unframed).
//
// It is fed from a single goroutine (the transport read loop).
type Deframer struct {
	// OnFrame receives each complete, unescaped frame.
	OnFrame func(frame []byte)
	// OnLine receives text lines seen outside of frames.
	OnLine func(line string)

	inFrame bool
	buf     []byte
}

func (d *Deframer) Feed(data []byte) {
	for _, b := range data {
		d.feedByte(b)
	}
}

func (d *Deframer) feedByte(b byte) {
	switch {
	case d.inFrame && b == slipFrameDelimiter:
		d.inFrame = false
		frame := Unescape(d.buf)
		d.buf = d.buf[:0]
		if d.OnFrame != nil {
			d.OnFrame(frame)
		} else {
			glog.V(1).Infof("dropping frame (%d)", len(frame))
		}
	case d.inFrame:
		d.buf = append(d.buf, b)
	case b == slipFrameDelimiter:
		// Possibly the beginning of a framed packet.
		d.inFrame = true
		d.buf = d.buf[:0]
	case b == '\r':
		line := string(d.buf)
		d.buf = d.buf[:0]
		if d.OnLine != nil {
			d.OnLine(line)
		}
	case b == '\n':
	default:
		d.buf = append(d.buf, b)
	}
}
