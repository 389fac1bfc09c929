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
	"io/ioutil"
	"path/filepath"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/plant-monitor/espflash/common/nvs"
)

const (
	manifestTypeBinary = "binary"
	manifestTypeNVS    = "nvs"
)

// Manifest describes an image in YAML:
//
//	partitions:
//	  - name: app
//	    offset: 0x10000
//	    src: build/app.bin
//	    sha256: ...
//	  - name: nvs
//	    type: nvs
//	    offset: 0x9000
//	    size: 0x6000
//	nvs:
//	  wifi:
//	    ssid: MyNetwork
//	placeholders:
//	  WIFI_SSID: MyNetwork
type Manifest struct {
	Partitions   []*ManifestPartition `yaml:"partitions"`
	NVS          yaml.MapSlice        `yaml:"nvs,omitempty"`
	Placeholders map[string]string    `yaml:"placeholders,omitempty"`

	dir string
}

type ManifestPartition struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type,omitempty"`
	Offset uint32 `yaml:"offset"`
	Src    string `yaml:"src,omitempty"`
	SHA256 string `yaml:"sha256,omitempty"`
	// NVS only.
	Size      int    `yaml:"size,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	// Apply placeholders to this binary.
	Patch bool `yaml:"patch,omitempty"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotatef(err, "invalid manifest")
	}
	return &m, nil
}

// LoadManifest reads a manifest file. Relative sources are resolved against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read manifest")
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Image builds the image described by the manifest. Extra NVS values and
// placeholders, e.g. from the command line, override those in the manifest.
func (m *Manifest) Image(extraNVS nvs.Config, extraPlaceholders map[string]string) (*Image, error) {
	placeholders := map[string]string{}
	for k, v := range m.Placeholders {
		placeholders[k] = v
	}
	for k, v := range extraPlaceholders {
		placeholders[k] = v
	}
	im := &Image{}
	numNVS := 0
	for i, mp := range m.Partitions {
		if mp.Name == "" {
			return nil, errors.Errorf("partition %d has no name", i)
		}
		switch mp.Type {
		case "", manifestTypeBinary:
			if mp.Src == "" {
				return nil, errors.Errorf("%s: no src", mp.Name)
			}
			p := NewBinaryPartition(mp.Name, mp.Offset, ParseSource(mp.Src, m.dir))
			p.ChecksumSHA256 = mp.SHA256
			if mp.Patch {
				p.Placeholders = placeholders
			}
			im.Add(p)
		case manifestTypeNVS:
			numNVS++
			if numNVS > 1 {
				return nil, errors.Errorf("%s: only one NVS partition is supported", mp.Name)
			}
			ns := mp.Namespace
			if ns == "" {
				ns = nvs.DefaultNamespace
			}
			cfg, err := nvs.ConfigFromYAML(m.NVS, ns)
			if err != nil {
				return nil, errors.Annotatef(err, "%s: invalid NVS values", mp.Name)
			}
			cfg.Merge(extraNVS)
			size := mp.Size
			if size == 0 {
				size = nvs.DefaultSize
			}
			np := nvs.NewPartition(size)
			if err := nvs.ApplyConfig(np, cfg); err != nil {
				return nil, errors.Annotatef(err, "%s", mp.Name)
			}
			im.Add(NewNVSPartition(mp.Name, mp.Offset, np))
		default:
			return nil, errors.Errorf("%s: unknown partition type %q", mp.Name, mp.Type)
		}
	}
	return im, nil
}
