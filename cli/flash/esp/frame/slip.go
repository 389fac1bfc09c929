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
	"fmt"

	"github.com/golang/glog"
)

const (
	// https://tools.ietf.org/html/rfc1055
	slipFrameDelimiter       = 0xC0
	slipEscape               = 0xDB
	slipEscapeFrameDelimiter = 0xDC
	slipEscapeEscape         = 0xDD
)

// Escape wraps data into a SLIP frame: delimiters on both ends, with any
// delimiter or escape bytes inside replaced by their two-byte sequences.
func Escape(data []byte) []byte {
	n := len(data) + 2
	for _, b := range data {
		if b == slipFrameDelimiter || b == slipEscape {
			n++
		}
	}
	frame := make([]byte, 0, n)
	frame = append(frame, slipFrameDelimiter)
	for _, b := range data {
		switch b {
		case slipFrameDelimiter:
			frame = append(frame, slipEscape, slipEscapeFrameDelimiter)
		case slipEscape:
			frame = append(frame, slipEscape, slipEscapeEscape)
		default:
			frame = append(frame, b)
		}
	}
	frame = append(frame, slipFrameDelimiter)
	glog.V(4).Infof("=> (%d) %s", len(data), LimitStr(data, 32))
	return frame
}

// Unescape reverses the byte stuffing of a frame body (without delimiters).
// Invalid escape sequences are dropped.
func Unescape(data []byte) []byte {
	res := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != slipEscape {
			res = append(res, b)
			continue
		}
		i++
		if i >= len(data) {
			glog.V(3).Infof("truncated SLIP escape sequence")
			break
		}
		switch data[i] {
		case slipEscapeFrameDelimiter:
			res = append(res, slipFrameDelimiter)
		case slipEscapeEscape:
			res = append(res, slipEscape)
		default:
			glog.V(3).Infof("invalid SLIP escape sequence: 0x%02x", data[i])
		}
	}
	glog.V(4).Infof("<= (%d) %s", len(res), LimitStr(res, 32))
	return res
}

// LimitStr renders at most n bytes of data as hex, for logging.
func LimitStr(data []byte, n int) string {
	if len(data) <= n {
		return fmt.Sprintf("% x", data)
	}
	return fmt.Sprintf("% x ...", data[:n])
}
