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
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testYAML = `
ssid: MyNetwork
port: 8080
wifi:
  pass: secret
  retries: 3
  offset: -20
`

const testINI = `
interval = 60

[wifi]
ssid = MyNetwork
neg = -5
mac = 00:11:22
`

func TestParseYAMLConfig(t *testing.T) {
	cfg, err := ParseYAMLConfig([]byte(testYAML), DefaultNamespace)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		"storage": {"ssid": "MyNetwork", "port": 8080},
		"wifi":    {"pass": "secret", "retries": 3, "offset": -20},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("want %+v, got %+v", want, cfg)
	}
	if _, err := ParseYAMLConfig([]byte("x: 1.5\n"), DefaultNamespace); err == nil {
		t.Fatalf("expected an error for a float")
	}
	if _, err := ParseYAMLConfig([]byte("x: [1, 2\n"), DefaultNamespace); err == nil {
		t.Fatalf("expected a syntax error")
	}
}

func TestParseINIConfig(t *testing.T) {
	cfg, err := ParseINIConfig([]byte(testINI), "app")
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		"app":  {"interval": int64(60)},
		"wifi": {"ssid": "MyNetwork", "neg": int64(-5), "mac": "00:11:22"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("want %+v, got %+v", want, cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "nvs")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	for i, c := range []struct {
		name, data string
		ok         bool
	}{
		{"cfg.yaml", testYAML, true},
		{"cfg.YML", testYAML, true},
		{"cfg.ini", testINI, true},
		{"cfg.json", "{}", false},
	} {
		fn := filepath.Join(dir, c.name)
		if err := ioutil.WriteFile(fn, []byte(c.data), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(fn, DefaultNamespace)
		if (err == nil) != c.ok {
			t.Fatalf("%d: %s: unexpected result %v", i, c.name, err)
		}
		if c.ok && len(cfg["wifi"]) == 0 {
			t.Fatalf("%d: %s: no wifi namespace", i, c.name)
		}
	}
	if _, err := LoadConfig(filepath.Join(dir, "nope.yaml"), DefaultNamespace); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestApplyConfig(t *testing.T) {
	cfg := Config{}
	cfg.Set("wifi", "ssid", "MyNetwork")
	cfg.Set("storage", "b", 2)
	cfg.Set("storage", "a", "x")
	cfg.Merge(Config{"wifi": {"pass": "secret"}})

	build := func() []byte {
		p := NewPartition(DefaultSize)
		if err := ApplyConfig(p, cfg); err != nil {
			t.Fatal(err)
		}
		if idx, _ := p.NamespaceIndex("storage"); idx != 1 {
			t.Fatalf("storage is %d", idx)
		}
		if idx, _ := p.NamespaceIndex("wifi"); idx != 2 {
			t.Fatalf("wifi is %d", idx)
		}
		var keys []string
		for _, e := range p.Pages()[0].Entries() {
			keys = append(keys, e.Key)
		}
		want := []string{"storage", "a", "b", "wifi", "pass", "ssid"}
		if !reflect.DeepEqual(keys, want) {
			t.Fatalf("want %q, got %q", want, keys)
		}
		b, err := p.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	checkBytes(t, "rebuilt partition", build(), build())

	bad := Config{"storage": {"this_key_is_too_long": 1}}
	if err := ApplyConfig(NewPartition(DefaultSize), bad); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		s string
		v interface{}
	}{
		{"1", int64(1)},
		{"-1", int64(-1)},
		{"18446744073709551615", uint64(18446744073709551615)},
		{"0x10", "0x10"},
		{"0", int64(0)},
		{"012345", "012345"},
		{"-007", "-007"},
		{"+5", "+5"},
		{"-", "-"},
		{"1.5", "1.5"},
		{"", ""},
		{"abc", "abc"},
	}
	for i, c := range cases {
		if v := ParseValue(c.s); !reflect.DeepEqual(v, c.v) {
			t.Fatalf("%d: %q: want %#v, got %#v", i, c.s, c.v, v)
		}
	}
}
