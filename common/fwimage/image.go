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

// Package fwimage assembles the set of partitions to be flashed.
package fwimage

import (
	"context"
	"sort"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/common/multierror"
	"github.com/plant-monitor/espflash/common/nvs"
)

const (
	FlashSectorSize = 0x1000

	BootloaderOffset     = 0x1000
	PartitionTableOffset = 0x8000
	AppOffset            = 0x10000
)

type Image struct {
	Partitions []*Partition

	loaded bool
}

type partitionsByOffset []*Partition

func (pp partitionsByOffset) Len() int      { return len(pp) }
func (pp partitionsByOffset) Swap(i, j int) { pp[i], pp[j] = pp[j], pp[i] }
func (pp partitionsByOffset) Less(i, j int) bool {
	return pp[i].Offset < pp[j].Offset
}

func (im *Image) Add(p *Partition) {
	im.Partitions = append(im.Partitions, p)
	im.loaded = false
}

// Load resolves every partition, stopping at the first failure, then sorts
// them by offset and checks the layout.
func (im *Image) Load(ctx context.Context) error {
	im.loaded = false
	if len(im.Partitions) == 0 {
		return errors.Errorf("nothing to flash")
	}
	for _, p := range im.Partitions {
		if err := p.Resolve(ctx); err != nil {
			return errors.Annotatef(err, "failed to load image")
		}
		glog.Infof("Loaded %s, %d bytes", p, len(p.Data()))
	}
	sort.Stable(partitionsByOffset(im.Partitions))
	if err := im.check(); err != nil {
		return errors.Trace(err)
	}
	im.loaded = true
	return nil
}

// Loaded reports whether the last Load succeeded.
func (im *Image) Loaded() bool {
	return im.loaded
}

// check requires partitions to be sorted.
func (im *Image) check() error {
	var errs error
	for i, p := range im.Partitions {
		if p.Offset%FlashSectorSize != 0 {
			errs = multierror.Append(errs, errors.Errorf(
				"%s: offset 0x%x is not on flash sector boundary (sector size %d)", p.Name, p.Offset, FlashSectorSize))
		}
		if i > 0 {
			prev := im.Partitions[i-1]
			prevEnd := prev.Offset + uint32(len(prev.Data()))
			if prevEnd > p.Offset {
				errs = multierror.Append(errs, errors.Errorf(
					"%s (0x%x-0x%x) and %s (0x%x) overlap", prev.Name, prev.Offset, prevEnd, p.Name, p.Offset))
			}
		}
	}
	return im.checkNVSLayout(errs)
}

// checkNVSLayout makes sure generated NVS partitions match the partition
// table being flashed, if there is one.
func (im *Image) checkNVSLayout(errs error) error {
	var entries []*PartitionTableEntry
	for _, p := range im.Partitions {
		if p.Kind == BinaryPartition && p.Offset == PartitionTableOffset {
			var err error
			if entries, err = ParsePartitionTable(p.Data()); err != nil {
				return multierror.Append(errs, errors.Annotatef(err, "%s", p.Name))
			}
		}
	}
	if len(entries) == 0 {
		return errs
	}
	for _, p := range im.Partitions {
		if p.Kind != NVSPartition {
			continue
		}
		e := findNVSEntry(entries, p.Name)
		if e == nil {
			glog.Warningf("%s: no NVS partition in the partition table", p.Name)
			continue
		}
		if e.Offset != p.Offset || int(e.Size) != len(p.Data()) {
			errs = multierror.Append(errs, errors.Errorf(
				"%s: 0x%x @ 0x%x does not match partition table entry %q (0x%x @ 0x%x)",
				p.Name, len(p.Data()), p.Offset, e.Label, e.Size, e.Offset))
		}
	}
	return errs
}

// Size returns the total number of bytes to be written.
func (im *Image) Size() int {
	n := 0
	for _, p := range im.Partitions {
		n += len(p.Data())
	}
	return n
}

// LayoutOpts describes the standard layout: bootloader, partition table,
// NVS and application. Empty sources and nil NVS are skipped.
type LayoutOpts struct {
	Bootloader     Source
	PartitionTable Source
	App            Source
	NVS            *nvs.Partition
	NVSOffset      uint32
	// Applied to the application binary.
	Placeholders map[string]string
}

func DefaultImage(opts LayoutOpts) *Image {
	im := &Image{}
	if opts.Bootloader != nil {
		im.Add(NewBinaryPartition("bootloader", BootloaderOffset, opts.Bootloader))
	}
	if opts.PartitionTable != nil {
		im.Add(NewBinaryPartition("partition-table", PartitionTableOffset, opts.PartitionTable))
	}
	if opts.NVS != nil {
		off := opts.NVSOffset
		if off == 0 {
			off = nvs.DefaultOffset
		}
		im.Add(NewNVSPartition("nvs", off, opts.NVS))
	}
	if opts.App != nil {
		app := NewBinaryPartition("app", AppOffset, opts.App)
		app.Placeholders = opts.Placeholders
		im.Add(app)
	}
	return im
}
