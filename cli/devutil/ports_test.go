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
package devutil

import (
	"reflect"
	"runtime"
	"sort"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestMergePorts(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60", SerialNumber: "0001", Product: "CP2102"},
		{Name: "/dev/ttyS0"},
	}
	got := mergePorts(details, []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyACM0"})
	want := []*PortInfo{
		{Name: "/dev/ttyUSB0", USB: true, VID: "10c4", PID: "ea60", SerialNumber: "0001", Product: "CP2102"},
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %+v, got %+v", want, got)
	}
}

func TestPortNameOrder(t *testing.T) {
	names := []string{"COM10", "/dev/ttyUSB10", "COM3", "/dev/ttyUSB2", "/dev/ttyACM0", "/dev/cu.usbserial"}
	sort.Sort(portNames(names))
	want := []string{"/dev/cu.usbserial", "/dev/ttyACM0", "/dev/ttyUSB2", "/dev/ttyUSB10", "COM3", "COM10"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("want %v, got %v", want, names)
	}
}

func TestPickPort(t *testing.T) {
	ignored := "/dev/ttyS9"
	switch runtime.GOOS {
	case "windows":
		ignored = "COM1"
	case "darwin":
		ignored = "/dev/cu.Bluetooth-Incoming-Port"
	}
	for i, c := range []struct {
		ports []*PortInfo
		want  string
	}{
		{nil, ""},
		{[]*PortInfo{{Name: "/dev/ttyS0"}, {Name: "/dev/ttyUSB0", USB: true}}, "/dev/ttyUSB0"},
		{[]*PortInfo{{Name: "/dev/ttyS0"}, {Name: "/dev/ttyS1"}}, "/dev/ttyS0"},
		{[]*PortInfo{{Name: "/dev/ttyACM0", USB: true}, {Name: "/dev/ttyUSB0", USB: true}}, "/dev/ttyACM0"},
	} {
		p := PickPort(c.ports)
		got := ""
		if p != nil {
			got = p.Name
		}
		if got != c.want {
			t.Fatalf("%d: want %q, got %q", i, c.want, got)
		}
	}
	if runtime.GOOS != "linux" {
		if p := PickPort([]*PortInfo{{Name: ignored, USB: true}}); p != nil {
			t.Fatalf("%s must not be picked", ignored)
		}
	}
}
