// Copyright (c) 2014-2017 Cesanta Software Limited
// All rights reserved

package common

import (
	"reflect"
	"testing"

	"github.com/plant-monitor/espflash/common/nvs"
)

func TestParseParamValuesTyped(t *testing.T) {
	for i, c := range []struct {
		args []string
		res  map[string]interface{}
		err  bool
	}{
		{nil, nil, false},
		{[]string{"a=1"}, map[string]interface{}{"a": int64(1)}, false},
		{[]string{"a=0x10", "b=-3"}, map[string]interface{}{"a": "0x10", "b": int64(-3)}, false},
		{[]string{"pin=012345", "zero=0"}, map[string]interface{}{"pin": "012345", "zero": int64(0)}, false},
		{[]string{"a=true", "b=false"}, map[string]interface{}{"a": true, "b": false}, false},
		{[]string{"a=x=y", "b="}, map[string]interface{}{"a": "x=y", "b": ""}, false},
		{[]string{"a"}, nil, true},
	} {
		res, err := ParseParamValuesTyped(c.args)
		if c.err {
			if err == nil {
				t.Fatalf("%d: expected an error", i)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%d: %s", i, err)
		}
		if !reflect.DeepEqual(res, c.res) {
			t.Fatalf("%d: want %#v, got %#v", i, c.res, res)
		}
	}
}

func TestParseNVSValues(t *testing.T) {
	cfg, err := ParseNVSValues([]string{"wifi.ssid=home", "count=3", "wifi.dhcp=true", "wifi.pass=012345", "wifi.pin=0x10"}, "storage")
	if err != nil {
		t.Fatalf("%s", err)
	}
	want := nvs.Config{
		"wifi":    {"ssid": "home", "dhcp": true, "pass": "012345", "pin": "0x10"},
		"storage": {"count": int64(3)},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("want %#v, got %#v", want, cfg)
	}

	for i, arg := range []string{".ssid=x", "wifi.=x", "nothing"} {
		if _, err := ParseNVSValues([]string{arg}, "storage"); err == nil {
			t.Fatalf("%d: %q accepted", i, arg)
		}
	}
}
