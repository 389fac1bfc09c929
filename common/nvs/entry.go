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
package nvs

import (
	"encoding/binary"
	"math"

	"github.com/juju/errors"
)

// Entry is one key/value record. Primitives take one block, strings take
// a header block followed by the data blocks.
type Entry struct {
	NS   uint8
	Type Type
	Key  string
	// Primitive value, sign-extended for signed types.
	Value uint64
	// String data including the terminating NUL.
	Data []byte
}

// StringSpan returns the number of blocks taken by a string of length l.
func StringSpan(l int) int {
	return 1 + (l+1+BlockSize-1)/BlockSize
}

func (e *Entry) Span() int {
	if e.Type == TypeStr {
		return 1 + (len(e.Data)+BlockSize-1)/BlockSize
	}
	return 1
}

func checkKey(key string) error {
	if key == "" {
		return errors.Errorf("empty key")
	}
	if len(key) > MaxKeyLen {
		return errors.Errorf("key %q is too long (%d > %d)", key, len(key), MaxKeyLen)
	}
	return nil
}

func newPrimitiveEntry(ns uint8, key string, t Type, v uint64) (*Entry, error) {
	if err := checkKey(key); err != nil {
		return nil, errors.Trace(err)
	}
	return &Entry{NS: ns, Type: t, Key: key, Value: v}, nil
}

func newStringEntry(ns uint8, key string, s string) (*Entry, error) {
	if err := checkKey(key); err != nil {
		return nil, errors.Trace(err)
	}
	if len(s)+1 > MaxStringLen {
		return nil, errors.Errorf("%s: string is too long (%d), max %d", key, len(s), MaxStringLen-1)
	}
	data := make([]byte, len(s)+1)
	copy(data, s)
	return &Entry{NS: ns, Type: TypeStr, Key: key, Data: data}, nil
}

// newEntry classifies the value and picks the narrowest type for it.
// Non-negative integers are unsigned, negative ones use the signed type of
// the smallest width that holds the value.
func newEntry(ns uint8, key string, value interface{}) (*Entry, error) {
	switch v := value.(type) {
	case string:
		return newStringEntry(ns, key, v)
	case bool:
		b := uint64(0)
		if v {
			b = 1
		}
		return newPrimitiveEntry(ns, key, TypeU8, b)
	case uint:
		return newPrimitiveEntry(ns, key, unsignedType(uint64(v)), uint64(v))
	case uint8:
		return newPrimitiveEntry(ns, key, unsignedType(uint64(v)), uint64(v))
	case uint16:
		return newPrimitiveEntry(ns, key, unsignedType(uint64(v)), uint64(v))
	case uint32:
		return newPrimitiveEntry(ns, key, unsignedType(uint64(v)), uint64(v))
	case uint64:
		return newPrimitiveEntry(ns, key, unsignedType(v), v)
	case int:
		return newIntEntry(ns, key, int64(v))
	case int8:
		return newIntEntry(ns, key, int64(v))
	case int16:
		return newIntEntry(ns, key, int64(v))
	case int32:
		return newIntEntry(ns, key, int64(v))
	case int64:
		return newIntEntry(ns, key, v)
	default:
		return nil, errors.Errorf("%s: unsupported value type %T", key, value)
	}
}

func newIntEntry(ns uint8, key string, v int64) (*Entry, error) {
	if v >= 0 {
		return newPrimitiveEntry(ns, key, unsignedType(uint64(v)), uint64(v))
	}
	return newPrimitiveEntry(ns, key, signedType(v), uint64(v))
}

func unsignedType(v uint64) Type {
	switch {
	case v < 1<<8:
		return TypeU8
	case v < 1<<16:
		return TypeU16
	case v < 1<<32:
		return TypeU32
	default:
		return TypeU64
	}
}

func signedType(v int64) Type {
	switch {
	case v >= math.MinInt8:
		return TypeI8
	case v >= math.MinInt16:
		return TypeI16
	case v >= math.MinInt32:
		return TypeI32
	default:
		return TypeI64
	}
}

// Encode returns the entry blocks, Span() * BlockSize bytes.
func (e *Entry) Encode() []byte {
	b := make([]byte, e.Span()*BlockSize)
	for i := range b {
		b[i] = 0xff
	}
	hdr := b[:BlockSize]
	hdr[0] = e.NS
	hdr[1] = uint8(e.Type)
	hdr[2] = uint8(e.Span())
	hdr[3] = noChunkIndex
	key := hdr[8 : 8+keySize]
	for i := range key {
		key[i] = 0
	}
	copy(key, e.Key)
	data := hdr[24:32]
	if e.Type == TypeStr {
		binary.LittleEndian.PutUint16(data[0:2], uint16(len(e.Data)))
		binary.LittleEndian.PutUint32(data[4:8], crc32le(e.Data))
		copy(b[BlockSize:], e.Data)
	} else {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], e.Value)
		copy(data, v[:e.Type.width()])
	}
	binary.LittleEndian.PutUint32(hdr[4:8], crc32le(hdr[0:4], hdr[8:32]))
	return b
}
