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
	"encoding/binary"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// ESP-IDF partition table, esp_partition_info_t.
const (
	PartitionTableEntryMagic uint16 = 0x50aa
	partitionTableEntryLen          = 32

	PartitionTypeApp     = 0x00
	PartitionTypeData    = 0x01
	PartitionSubtypeNVS  = 0x02
	partitionLabelMaxLen = 16
)

type espPartitionInfo struct {
	Magic   uint16
	Type    uint8
	Subtype uint8
	Offset  uint32
	Size    uint32
	Label   [partitionLabelMaxLen]byte
	Flags   uint32
}

type PartitionTableEntry struct {
	Type    uint8
	Subtype uint8
	Offset  uint32
	Size    uint32
	Label   string
	Flags   uint32
}

// ParsePartitionTable reads entries until the first one without the magic
// (the MD5 entry or erased flash).
func ParsePartitionTable(data []byte) ([]*PartitionTableEntry, error) {
	var res []*PartitionTableEntry
	ptb := bytes.NewReader(data)
	for ptb.Len() >= partitionTableEntryLen {
		var pte espPartitionInfo
		if err := binary.Read(ptb, binary.LittleEndian, &pte); err != nil {
			return nil, errors.Annotatef(err, "invalid partition table")
		}
		if pte.Magic != PartitionTableEntryMagic {
			break
		}
		e := &PartitionTableEntry{
			Type:    pte.Type,
			Subtype: pte.Subtype,
			Offset:  pte.Offset,
			Size:    pte.Size,
			Label:   strings.TrimRight(string(pte.Label[:]), "\x00"),
			Flags:   pte.Flags,
		}
		glog.V(2).Infof("pt %q - %d @ 0x%x", e.Label, e.Size, e.Offset)
		res = append(res, e)
	}
	return res, nil
}

// findNVSEntry looks up the table entry for an NVS partition: by label, or
// the only NVS entry if there is exactly one.
func findNVSEntry(entries []*PartitionTableEntry, name string) *PartitionTableEntry {
	var nvsEntries []*PartitionTableEntry
	for _, e := range entries {
		if e.Type != PartitionTypeData || e.Subtype != PartitionSubtypeNVS {
			continue
		}
		if e.Label == name {
			return e
		}
		nvsEntries = append(nvsEntries, e)
	}
	if len(nvsEntries) == 1 {
		return nvsEntries[0]
	}
	return nil
}
