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
package fwimage

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	placeholderPrefix = "PLACEHOLDER_FOR"
	// How far past the prefix the terminating '*' is looked for.
	placeholderMaxLen = 60
	placeholderFill   = '*'

	espImageMagic         = 0xe9
	espImageHeaderLen     = 24
	espSegmentHeaderLen   = 8
	espImageChecksumSeed  = 0xef
	espImageDigestLen     = sha256.Size
	espImageMinTrailerLen = 1 + espImageDigestLen
	// Header byte that is 1 when a SHA-256 digest follows the checksum.
	espImageHashAppendedOff = 23
)

// Placeholder is a PLACEHOLDER_FOR<NAME>**** marker in a binary.
// The value replaces the whole marker, padded with NULs.
type Placeholder struct {
	Name   string
	Offset int
	Len    int
}

// FindPlaceholders scans a binary for placeholder markers. The name is the
// part between the prefix and the first '*', minus leading underscores.
func FindPlaceholders(data []byte) []Placeholder {
	var res []Placeholder
	prefix := []byte(placeholderPrefix)
	for off := 0; off < len(data); {
		i := bytes.Index(data[off:], prefix)
		if i < 0 {
			break
		}
		start := off + i
		end := start + placeholderMaxLen
		if end > len(data) {
			end = len(data)
		}
		star := bytes.IndexByte(data[start:end], placeholderFill)
		if star < 0 {
			glog.V(1).Infof("unterminated placeholder at 0x%x", start)
			off = start + len(prefix)
			continue
		}
		nameEnd := start + star
		markerEnd := nameEnd
		for markerEnd < len(data) && data[markerEnd] == placeholderFill {
			markerEnd++
		}
		name := strings.TrimLeft(string(data[start+len(prefix):nameEnd]), "_")
		res = append(res, Placeholder{Name: name, Offset: start, Len: markerEnd - start})
		off = markerEnd
	}
	return res
}

// ApplyPlaceholders patches the markers that have values and, if anything
// was patched, updates the ESP image checksum and digest.
func ApplyPlaceholders(data []byte, values map[string]string) (int, error) {
	n := 0
	for _, ph := range FindPlaceholders(data) {
		v, ok := values[ph.Name]
		if !ok {
			glog.V(1).Infof("no value for placeholder %s", ph.Name)
			continue
		}
		if len(v) > ph.Len {
			return n, errors.Errorf("value for %s is too long (%d), max %d", ph.Name, len(v), ph.Len)
		}
		copy(data[ph.Offset:], v)
		for i := ph.Offset + len(v); i < ph.Offset+ph.Len; i++ {
			data[i] = 0
		}
		glog.V(1).Infof("%s @ 0x%x (%d) patched", ph.Name, ph.Offset, ph.Len)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, errors.Trace(UpdateImageChecksum(data))
}

// UpdateImageChecksum recomputes the checksum byte of an ESP application
// image and, if the header says one is appended, its SHA-256 digest.
// The checksum is the XOR of all segment data seeded with 0xef. It is the
// last byte of the image, or the byte right before the digest.
func UpdateImageChecksum(data []byte) error {
	if len(data) < espImageHeaderLen+1 {
		return errors.Errorf("image is too short (%d)", len(data))
	}
	if data[0] != espImageMagic {
		return errors.Errorf("invalid image magic 0x%02x", data[0])
	}
	hashAppended := data[espImageHashAppendedOff] == 1
	trailerLen := 1
	if hashAppended {
		trailerLen = espImageMinTrailerLen
	}
	if len(data) < espImageHeaderLen+trailerLen {
		return errors.Errorf("image is too short (%d)", len(data))
	}
	numSegments := int(data[1])
	cs := uint8(espImageChecksumSeed)
	off := espImageHeaderLen
	limit := len(data) - trailerLen
	for i := 0; i < numSegments; i++ {
		if off+espSegmentHeaderLen > limit {
			return errors.Errorf("segment %d header at 0x%x is past the end of the image", i, off)
		}
		segLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += espSegmentHeaderLen
		if segLen > limit-off {
			return errors.Errorf("segment %d (%d @ 0x%x) is past the end of the image", i, segLen, off)
		}
		for _, b := range data[off : off+segLen] {
			cs ^= b
		}
		off += segLen
	}
	data[limit] = cs
	if hashAppended {
		digest := sha256.Sum256(data[:len(data)-espImageDigestLen])
		copy(data[len(data)-espImageDigestLen:], digest[:])
	}
	return nil
}
