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

// Package nvs builds ESP-IDF non-volatile storage partition images.
// Only writing is supported.
package nvs

import (
	"fmt"
	"hash/crc32"
)

const (
	PageSize       = 4096
	BlockSize      = 32
	EntriesPerPage = 126
	MaxKeyLen      = 15
	FormatVersion  = 0xfe

	pageHeaderSize  = 32
	entryBitmapSize = 32
	entriesOffset   = pageHeaderSize + entryBitmapSize
	keySize         = MaxKeyLen + 1
	noChunkIndex    = 0xff
	maxNamespaces   = 254

	// Longest string (including the terminating NUL) that fits in one page.
	MaxStringLen = (EntriesPerPage - 1) * BlockSize

	DefaultNamespace = "storage"
	DefaultOffset    = 0x9000
	DefaultSize      = 0x6000
)

type PageState uint32

const (
	PageStateActive PageState = 0xfffffffe
	PageStateFull   PageState = 0xfffffffc
)

func (s PageState) String() string {
	switch s {
	case PageStateActive:
		return "ACTIVE"
	case PageStateFull:
		return "FULL"
	default:
		return fmt.Sprintf("0x%08x", uint32(s))
	}
}

type Type uint8

const (
	TypeU8   Type = 0x01
	TypeI8   Type = 0x11
	TypeU16  Type = 0x02
	TypeI16  Type = 0x12
	TypeU32  Type = 0x04
	TypeI32  Type = 0x14
	TypeU64  Type = 0x08
	TypeI64  Type = 0x18
	TypeStr  Type = 0x21
	TypeBlob Type = 0x42
)

func (t Type) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeI8:
		return "i8"
	case TypeU16:
		return "u16"
	case TypeI16:
		return "i16"
	case TypeU32:
		return "u32"
	case TypeI32:
		return "i32"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeStr:
		return "string"
	case TypeBlob:
		return "blob"
	default:
		return fmt.Sprintf("0x%02x", uint8(t))
	}
}

// Width of a primitive value in bytes. It's in the low nibble of the type.
func (t Type) width() int {
	return int(t & 0x0f)
}

// crc32le matches crc32_le(0xffffffff, data, len) used by ESP-IDF.
func crc32le(data ...[]byte) uint32 {
	crc := uint32(0xffffffff)
	for _, d := range data {
		crc = crc32.Update(crc, crc32.IEEETable, d)
	}
	return crc
}
