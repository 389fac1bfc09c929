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

// Package frame implements the ESP ROM loader command framing.
// https://github.com/espressif/esptool/wiki/Serial-Protocol
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
)

type Opcode uint8

const (
	OpFlashBegin     Opcode = 0x02
	OpFlashData      Opcode = 0x03
	OpFlashEnd       Opcode = 0x04
	OpSync           Opcode = 0x08
	OpReadReg        Opcode = 0x0a
	OpSPISetParams   Opcode = 0x0b
	OpSPIAttach      Opcode = 0x0d
	OpChangeBaudRate Opcode = 0x0f
)

const (
	HeaderLen = 8

	dirRequest  = 0x00
	dirResponse = 0x01

	ChecksumSeed = 0xef
)

func (op Opcode) String() string {
	switch op {
	case OpFlashBegin:
		return "FLASH_BEGIN"
	case OpFlashData:
		return "FLASH_DATA"
	case OpFlashEnd:
		return "FLASH_END"
	case OpSync:
		return "SYNC"
	case OpReadReg:
		return "READ_REG"
	case OpSPISetParams:
		return "SPI_SET_PARAMS"
	case OpSPIAttach:
		return "SPI_ATTACH"
	case OpChangeBaudRate:
		return "CHANGE_BAUDRATE"
	default:
		return fmt.Sprintf("0x%02x", uint8(op))
	}
}

// EncodeCommand builds an unescaped request frame: direction, opcode,
// payload length, checksum and the payload itself.
func EncodeCommand(op Opcode, payload []byte, checksum uint32) []byte {
	w := NewWriter(HeaderLen + len(payload))
	w.U8(dirRequest).U8(uint8(op)).U16(uint16(len(payload))).U32(checksum).Bytes(payload)
	return w.Get()
}

// Checksum computes the FLASH_DATA checksum: XOR of all bytes, seeded with 0xEF.
func Checksum(data []byte) uint32 {
	cs := uint8(ChecksumSeed)
	for _, b := range data {
		cs ^= b
	}
	return uint32(cs)
}

// SyncPayload returns the fixed payload of the SYNC command.
func SyncPayload() []byte {
	p := make([]byte, 36)
	p[0], p[1], p[2], p[3] = 0x07, 0x07, 0x12, 0x20
	for i := 4; i < len(p); i++ {
		p[i] = 0x55
	}
	return p
}

// Response is a decoded response frame.
type Response struct {
	Op    Opcode
	Value uint32
	Data  []byte

	off int
}

// DecodeResponse parses an unescaped response frame. The second return value
// is false if the frame is not a valid response to the expected command.
func DecodeResponse(b []byte, expected Opcode) (*Response, bool) {
	if len(b) < HeaderLen {
		glog.V(3).Infof("frame too short (%d)", len(b))
		return nil, false
	}
	if b[0] != dirResponse {
		glog.V(3).Infof("frame does not start with 1: %s", LimitStr(b, 16))
		return nil, false
	}
	if Opcode(b[1]) != expected {
		glog.V(3).Infof("frame does not match command %s: %s", expected, LimitStr(b, 16))
		return nil, false
	}
	l := int(binary.LittleEndian.Uint16(b[2:4]))
	if l+HeaderLen != len(b) {
		glog.V(3).Infof("frame length mismatch: header says %d, got %d", l, len(b)-HeaderLen)
		return nil, false
	}
	data := make([]byte, l)
	copy(data, b[HeaderLen:])
	return &Response{
		Op:    expected,
		Value: binary.LittleEndian.Uint32(b[4:8]),
		Data:  data,
	}, true
}

// Status returns the first status byte of the response data, the one the ROM
// sets to 0 on success. Responses without data are reported as failed.
func (r *Response) Status() (uint8, bool) {
	if len(r.Data) < 2 {
		return 0, false
	}
	return r.Data[0], true
}

func (r *Response) Len() int {
	return len(r.Data)
}

func (r *Response) U8() uint8 {
	if r.off+1 > len(r.Data) {
		return 0
	}
	v := r.Data[r.off]
	r.off++
	return v
}

func (r *Response) U16() uint16 {
	if r.off+2 > len(r.Data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.Data[r.off:])
	r.off += 2
	return v
}

func (r *Response) U32() uint32 {
	if r.off+4 > len(r.Data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.Data[r.off:])
	r.off += 4
	return v
}
