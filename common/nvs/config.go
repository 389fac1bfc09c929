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
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config maps namespace -> key -> value.
type Config map[string]map[string]interface{}

func (c Config) Set(namespace, key string, value interface{}) {
	m := c[namespace]
	if m == nil {
		m = make(map[string]interface{})
		c[namespace] = m
	}
	m[key] = value
}

// Merge copies all values from other, overriding existing ones.
func (c Config) Merge(other Config) {
	for ns, kv := range other {
		for k, v := range kv {
			c.Set(ns, k, v)
		}
	}
}

// LoadConfig reads values from a .yaml/.yml or .ini file.
// Values that are not in a namespace go to defaultNS.
func LoadConfig(path, defaultNS string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read NVS config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLConfig(data, defaultNS)
	case ".ini":
		return ParseINIConfig(data, defaultNS)
	default:
		return nil, errors.Errorf("%s: unknown config format, must be .yaml or .ini", path)
	}
}

// ParseYAMLConfig parses a YAML mapping. Scalars at the top level go to
// defaultNS, nested mappings are namespaces.
func ParseYAMLConfig(data []byte, defaultNS string) (Config, error) {
	var m yaml.MapSlice
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotatef(err, "invalid YAML")
	}
	return ConfigFromYAML(m, defaultNS)
}

// ConfigFromYAML converts an already parsed YAML mapping.
func ConfigFromYAML(m yaml.MapSlice, defaultNS string) (Config, error) {
	cfg := Config{}
	for _, item := range m {
		key := fmt.Sprintf("%v", item.Key)
		switch v := item.Value.(type) {
		case yaml.MapSlice:
			for _, kv := range v {
				val, err := yamlValue(kv.Value)
				if err != nil {
					return nil, errors.Annotatef(err, "%s.%v", key, kv.Key)
				}
				cfg.Set(key, fmt.Sprintf("%v", kv.Key), val)
			}
		default:
			val, err := yamlValue(v)
			if err != nil {
				return nil, errors.Annotatef(err, "%s", key)
			}
			cfg.Set(defaultNS, key, val)
		}
	}
	return cfg, nil
}

func yamlValue(v interface{}) (interface{}, error) {
	switch vv := v.(type) {
	case string, bool, int, int64, uint64:
		return vv, nil
	case float64:
		if vv == float64(int64(vv)) {
			return int64(vv), nil
		}
		return nil, errors.Errorf("floating point values are not supported")
	case nil:
		return "", nil
	default:
		return nil, errors.Errorf("unsupported value %v (%T)", v, v)
	}
}

// ParseINIConfig parses an INI file. Sections are namespaces, keys outside
// of any section go to defaultNS. Values that look like decimal integers
// are stored as integers.
func ParseINIConfig(data []byte, defaultNS string) (Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid INI")
	}
	cfg := Config{}
	for _, s := range f.Sections() {
		ns := s.Name()
		if ns == ini.DefaultSection {
			ns = defaultNS
		}
		for _, k := range s.Keys() {
			cfg.Set(ns, k.Name(), ParseValue(k.String()))
		}
	}
	return cfg, nil
}

// ParseValue turns decimal integers into int64 (or uint64 if too big),
// everything else stays a string. Numbers with leading zeros or a '+' sign
// are kept as strings, so PINs and passwords survive unchanged.
func ParseValue(s string) interface{} {
	if !isDecimal(s) {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	return s
}

func isDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ApplyConfig writes all values to the partition. Namespaces and keys are
// written in sorted order so the output is reproducible.
func ApplyConfig(p *Partition, cfg Config) error {
	var nss []string
	for ns := range cfg {
		nss = append(nss, ns)
	}
	sort.Strings(nss)
	for _, ns := range nss {
		var keys []string
		for k := range cfg[ns] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := p.WriteEntry(ns, k, cfg[ns][k]); err != nil {
				return errors.Annotatef(err, "%s.%s", ns, k)
			}
		}
	}
	return nil
}
