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

	"github.com/juju/errors"
)

// Page is a 4 KiB unit of the partition.
//
// Layout:
//
//	0   state (u32)
//	4   sequence number (u32)
//	8   version (u8), 0xfe
//	9   reserved, 0xff
//	28  CRC32 of bytes 4..27
//	32  entry state bitmap, 2 bits per slot
//	64  126 entry slots of 32 bytes
type Page struct {
	seq     uint32
	state   PageState
	entries []*Entry
	used    int
}

func newPage(seq uint32) *Page {
	return &Page{seq: seq, state: PageStateActive}
}

func (p *Page) Seq() uint32 {
	return p.seq
}

func (p *Page) State() PageState {
	return p.state
}

func (p *Page) Entries() []*Entry {
	return p.entries
}

// UsedBlocks returns the number of occupied entry slots.
func (p *Page) UsedBlocks() int {
	return p.used
}

func (p *Page) fits(e *Entry) bool {
	return p.used+e.Span() <= EntriesPerPage
}

func (p *Page) add(e *Entry) error {
	if p.state != PageStateActive {
		return errors.Errorf("page %d is %s", p.seq, p.state)
	}
	if !p.fits(e) {
		return errors.Errorf("page %d: no room for %s (%d + %d)", p.seq, e.Key, p.used, e.Span())
	}
	p.entries = append(p.entries, e)
	p.used += e.Span()
	return nil
}

func (p *Page) markFull() {
	p.state = PageStateFull
}

// Bytes serializes the page.
func (p *Page) Bytes() []byte {
	b := make([]byte, PageSize)
	for i := range b {
		b[i] = 0xff
	}
	binary.LittleEndian.PutUint32(b[0:4], uint32(p.state))
	binary.LittleEndian.PutUint32(b[4:8], p.seq)
	b[8] = FormatVersion
	binary.LittleEndian.PutUint32(b[28:32], crc32le(b[4:28]))

	bitmap := b[pageHeaderSize:entriesOffset]
	slot := 0
	for _, e := range p.entries {
		copy(b[entriesOffset+slot*BlockSize:], e.Encode())
		for i := 0; i < e.Span(); i++ {
			// 11 (empty) -> 10 (written).
			bitmap[slot/4] &^= 1 << uint((slot%4)*2)
			slot++
		}
	}
	return b
}
