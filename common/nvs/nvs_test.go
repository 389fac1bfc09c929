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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func idfCRC(parts ...[]byte) uint32 {
	crc := uint32(0xffffffff)
	for _, p := range parts {
		crc = crc32.Update(crc, crc32.IEEETable, p)
	}
	return crc
}

func ffs(n int) []byte {
	return bytes.Repeat([]byte{0xff}, n)
}

func entryBlock(ns, typ, span uint8, key string, data []byte) []byte {
	b := make([]byte, BlockSize)
	b[0], b[1], b[2], b[3] = ns, typ, span, 0xff
	copy(b[8:24], key)
	copy(b[24:32], data)
	binary.LittleEndian.PutUint32(b[4:8], idfCRC(b[0:4], b[8:32]))
	return b
}

func primData(n int, v uint64) []byte {
	d := ffs(8)
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], v)
	copy(d, le[:n])
	return d
}

func pageHeader(state uint32, seq uint32) []byte {
	b := ffs(pageHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], state)
	binary.LittleEndian.PutUint32(b[4:8], seq)
	b[8] = 0xfe
	binary.LittleEndian.PutUint32(b[28:32], idfCRC(b[4:28]))
	return b
}

func checkBytes(t *testing.T, what string, want, got []byte) {
	t.Helper()
	if bytes.Equal(want, got) {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(hex.Dump(want), hex.Dump(got), false)
	t.Fatalf("%s mismatch:\n%s", what, dmp.DiffPrettyText(diffs))
}

func TestStringSpan(t *testing.T) {
	cases := []struct {
		l, span int
	}{
		{0, 2},
		{9, 2},
		{30, 2},
		{31, 2},
		{32, 3},
		{63, 3},
		{64, 4},
		{3999, 126},
	}
	for i, c := range cases {
		if s := StringSpan(c.l); s != c.span {
			t.Fatalf("%d: len %d: want span %d, got %d", i, c.l, c.span, s)
		}
		e, err := newStringEntry(1, "k", strings.Repeat("x", c.l))
		if err != nil {
			t.Fatalf("%d: %s", i, err)
		}
		if s := e.Span(); s != c.span {
			t.Fatalf("%d: len %d: entry span %d, want %d", i, c.l, s, c.span)
		}
	}
}

func TestValueTypes(t *testing.T) {
	cases := []struct {
		v    interface{}
		typ  Type
		data []byte
	}{
		{0, TypeU8, primData(1, 0)},
		{255, TypeU8, primData(1, 255)},
		{256, TypeU16, primData(2, 256)},
		{12345, TypeU16, []byte{0x39, 0x30, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{65535, TypeU16, primData(2, 65535)},
		{65536, TypeU32, primData(4, 65536)},
		{int64(1) << 32, TypeU64, primData(8, 1<<32)},
		{uint64(1) << 63, TypeU64, primData(8, 1<<63)},
		{uint8(7), TypeU8, primData(1, 7)},
		{-1, TypeI8, primData(1, 0xff)},
		{-128, TypeI8, primData(1, 0x80)},
		{-129, TypeI16, primData(2, 0xff7f)},
		{-200, TypeI16, primData(2, 0xff38)},
		{int32(-40000), TypeI32, primData(4, 0xffff63c0)},
		{int64(-1) << 40, TypeI64, primData(8, 0xffffff0000000000)},
		{true, TypeU8, primData(1, 1)},
		{false, TypeU8, primData(1, 0)},
	}
	for i, c := range cases {
		e, err := newEntry(3, "k", c.v)
		if err != nil {
			t.Fatalf("%d: %v: %s", i, c.v, err)
		}
		if e.Type != c.typ {
			t.Fatalf("%d: %v: want %s, got %s", i, c.v, c.typ, e.Type)
		}
		checkBytes(t, fmt.Sprintf("%d: %v", i, c.v), entryBlock(3, uint8(c.typ), 1, "k", c.data), e.Encode())
	}
}

func TestWriteEntryErrors(t *testing.T) {
	cases := []struct {
		ns, key string
		v       interface{}
	}{
		{"storage", "0123456789abcdef", 1},
		{"0123456789abcdef", "key", 1},
		{"storage", "", 1},
		{"", "key", 1},
		{"storage", "key", 1.5},
		{"storage", "key", []string{"a"}},
		{"storage", "key", strings.Repeat("x", 4000)},
	}
	for i, c := range cases {
		p := NewPartition(DefaultSize)
		if err := p.WriteEntry(c.ns, c.key, c.v); err == nil {
			t.Fatalf("%d: %q %q: expected an error", i, c.ns, c.key)
		}
		if len(p.Pages()) != 0 {
			t.Fatalf("%d: failed write left %d pages", i, len(p.Pages()))
		}
	}
	// 15 characters is fine.
	p := NewPartition(DefaultSize)
	if err := p.WriteEntry("0123456789abcde", "0123456789abcde", 1); err != nil {
		t.Fatal(err)
	}
}

func TestNamespaceIndices(t *testing.T) {
	p := NewPartition(DefaultSize)
	for i, ns := range []string{"wifi", "mqtt", "wifi", "sensor", "mqtt"} {
		if err := p.WriteEntry(ns, fmt.Sprintf("k%d", i), i); err != nil {
			t.Fatal(err)
		}
	}
	for want, ns := range []string{"wifi", "mqtt", "sensor"} {
		idx, ok := p.NamespaceIndex(ns)
		if !ok || int(idx) != want+1 {
			t.Fatalf("%s: want %d, got %d %t", ns, want+1, idx, ok)
		}
	}
	if _, ok := p.NamespaceIndex("nope"); ok {
		t.Fatalf("unknown namespace has an index")
	}
	// 3 namespace records and 5 values.
	if n := p.Pages()[0].UsedBlocks(); n != 8 {
		t.Fatalf("want 8 blocks, got %d", n)
	}
	nsRecords := 0
	for _, e := range p.Pages()[0].Entries() {
		if e.NS == 0 {
			nsRecords++
		}
	}
	if nsRecords != 3 {
		t.Fatalf("want 3 namespace records, got %d", nsRecords)
	}
}

func TestWifiPartition(t *testing.T) {
	p := NewPartition(DefaultSize)
	if err := p.WriteEntry("wifi", "ssid", "MyNetwork"); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteEntry("wifi", "pass", 12345); err != nil {
		t.Fatal(err)
	}
	entries := p.Pages()[0].Entries()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	if e := entries[0]; e.NS != 0 || e.Key != "wifi" || e.Value != 1 {
		t.Fatalf("bad namespace record %+v", e)
	}
	if s := entries[1].Span(); s != 2 {
		t.Fatalf("string span %d", s)
	}
	if s := entries[2].Span(); s != 1 {
		t.Fatalf("int span %d", s)
	}

	b, err := p.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != DefaultSize {
		t.Fatalf("partition is %d bytes", len(b))
	}

	str := []byte("MyNetwork\x00")
	strData := ffs(8)
	binary.LittleEndian.PutUint16(strData[0:2], uint16(len(str)))
	binary.LittleEndian.PutUint32(strData[4:8], idfCRC(str))

	var want []byte
	want = append(want, pageHeader(0xfffffffe, 0)...)
	want = append(want, 0xaa)
	want = append(want, ffs(31)...)
	want = append(want, entryBlock(0, 0x01, 1, "wifi", primData(1, 1))...)
	want = append(want, entryBlock(1, 0x21, 2, "ssid", strData)...)
	want = append(want, str...)
	want = append(want, ffs(BlockSize-len(str))...)
	want = append(want, entryBlock(1, 0x02, 1, "pass", primData(2, 12345))...)
	want = append(want, ffs(DefaultSize-len(want))...)
	checkBytes(t, "partition", want, b)
}

func TestPageRollover(t *testing.T) {
	p := NewPartition(DefaultSize)
	// Namespace record + 125 values fill the page exactly.
	for i := 0; i < EntriesPerPage-1; i++ {
		if err := p.WriteEntry("storage", fmt.Sprintf("k%d", i), i); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(p.Pages()); n != 1 {
		t.Fatalf("want 1 page, got %d", n)
	}
	if pg := p.Pages()[0]; pg.UsedBlocks() != EntriesPerPage || pg.State() != PageStateActive {
		t.Fatalf("page 0: %d blocks, %s", pg.UsedBlocks(), pg.State())
	}
	if err := p.WriteEntry("storage", "extra", 1); err != nil {
		t.Fatal(err)
	}
	pages := p.Pages()
	if len(pages) != 2 {
		t.Fatalf("want 2 pages, got %d", len(pages))
	}
	if pages[0].State() != PageStateFull || pages[1].State() != PageStateActive {
		t.Fatalf("unexpected states %s %s", pages[0].State(), pages[1].State())
	}
	if pages[1].Seq() != 1 || pages[1].UsedBlocks() != 1 {
		t.Fatalf("page 1: seq %d, %d blocks", pages[1].Seq(), pages[1].UsedBlocks())
	}

	b, err := p.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	checkBytes(t, "page 0 header", pageHeader(0xfffffffc, 0), b[:pageHeaderSize])
	wantBitmap := append(bytes.Repeat([]byte{0xaa}, 31), 0xfa)
	checkBytes(t, "page 0 bitmap", wantBitmap, b[pageHeaderSize:entriesOffset])
	p1 := b[PageSize : 2*PageSize]
	checkBytes(t, "page 1 header", pageHeader(0xfffffffe, 1), p1[:pageHeaderSize])
	checkBytes(t, "page 1 entry", entryBlock(1, 0x01, 1, "extra", primData(1, 1)), p1[entriesOffset:entriesOffset+BlockSize])
	checkBytes(t, "unused pages", ffs(DefaultSize-2*PageSize), b[2*PageSize:])
}

func TestStringRollover(t *testing.T) {
	p := NewPartition(DefaultSize)
	// The largest string takes a whole page, so it can't share one with
	// the namespace record.
	long := strings.Repeat("x", MaxStringLen-1)
	if err := p.WriteEntry("big", "s", long); err != nil {
		t.Fatal(err)
	}
	pages := p.Pages()
	if len(pages) != 2 {
		t.Fatalf("want 2 pages, got %d", len(pages))
	}
	if pages[0].UsedBlocks() != 1 || pages[1].UsedBlocks() != EntriesPerPage {
		t.Fatalf("unexpected fill %d %d", pages[0].UsedBlocks(), pages[1].UsedBlocks())
	}
	b, err := p.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	p1 := b[PageSize : 2*PageSize]
	data := p1[entriesOffset+BlockSize : entriesOffset+BlockSize+len(long)+1]
	if string(data) != long+"\x00" {
		t.Fatalf("string data mismatch")
	}
}

func TestFinalizeOverflow(t *testing.T) {
	p := NewPartition(PageSize)
	for i := 0; i < EntriesPerPage; i++ {
		if err := p.WriteEntry("storage", fmt.Sprintf("k%d", i), i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.Finalize(); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := NewPartition(1000).Finalize(); err == nil {
		t.Fatalf("expected bad size error")
	}
	b, err := NewPartition(2 * PageSize).Finalize()
	if err != nil {
		t.Fatal(err)
	}
	checkBytes(t, "empty partition", ffs(2*PageSize), b)
}
