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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/common/nvs"
)

type Kind int

const (
	BinaryPartition Kind = iota
	NVSPartition
)

func (k Kind) String() string {
	switch k {
	case BinaryPartition:
		return "binary"
	case NVSPartition:
		return "nvs"
	default:
		return fmt.Sprintf("???(%d)", int(k))
	}
}

// Partition is a region of flash and its contents. Binary partitions get
// their data from a Source, NVS partitions are generated.
type Partition struct {
	Name   string
	Offset uint32
	Kind   Kind

	// Binary partitions.
	Src            Source
	ChecksumSHA256 string
	// Values for PLACEHOLDER_FOR markers, by name.
	Placeholders map[string]string

	// NVS partitions.
	NVS *nvs.Partition

	data []byte
}

func NewBinaryPartition(name string, offset uint32, src Source) *Partition {
	return &Partition{Name: name, Offset: offset, Kind: BinaryPartition, Src: src}
}

func NewNVSPartition(name string, offset uint32, p *nvs.Partition) *Partition {
	return &Partition{Name: name, Offset: offset, Kind: NVSPartition, NVS: p}
}

// Resolve produces the partition contents.
func (p *Partition) Resolve(ctx context.Context) error {
	var data []byte
	var err error
	switch p.Kind {
	case BinaryPartition:
		data, err = p.resolveBinary(ctx)
	case NVSPartition:
		if p.NVS == nil {
			return errors.Errorf("%s: no NVS data", p.Name)
		}
		data, err = p.NVS.Finalize()
	default:
		err = errors.Errorf("unknown partition kind %s", p.Kind)
	}
	if err != nil {
		return errors.Annotatef(err, "%s", p.Name)
	}
	p.data = data
	return nil
}

func (p *Partition) resolveBinary(ctx context.Context) ([]byte, error) {
	if p.Src == nil {
		return nil, errors.Errorf("no data source")
	}
	data, err := p.Src.Fetch(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if p.ChecksumSHA256 != "" {
		cs := computeSHA256(data)
		if cs != strings.ToLower(p.ChecksumSHA256) {
			return nil, errors.Errorf("checksum does not match (want %s, got %s)", p.ChecksumSHA256, cs)
		}
	}
	if len(p.Placeholders) > 0 {
		n, err := ApplyPlaceholders(data, p.Placeholders)
		if err != nil {
			return nil, errors.Trace(err)
		}
		glog.V(1).Infof("%s: patched %d placeholders", p.Name, n)
	}
	return data, nil
}

// Data returns the resolved contents, nil before Resolve.
func (p *Partition) Data() []byte {
	return p.data
}

func (p *Partition) Resolved() bool {
	return p.data != nil
}

func (p *Partition) String() string {
	src := "generated"
	if p.Kind == BinaryPartition && p.Src != nil {
		src = p.Src.String()
	}
	return fmt.Sprintf("%s @ 0x%x (%s, %s)", p.Name, p.Offset, p.Kind, src)
}

func computeSHA256(data []byte) string {
	cs := sha256.Sum256(data)
	return strings.ToLower(hex.EncodeToString(cs[:]))
}
