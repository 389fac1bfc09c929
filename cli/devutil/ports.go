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
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port. USB details are filled in when the
// OS can provide them.
type PortInfo struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// portNames orders names by prefix, then by the trailing number, so that
// COM3 goes before COM10 and ttyUSB2 before ttyUSB10.
type portNames []string

func (pn portNames) Len() int           { return len(pn) }
func (pn portNames) Swap(i, j int)      { pn[i], pn[j] = pn[j], pn[i] }
func (pn portNames) Less(i, j int) bool { return lessPortName(pn[i], pn[j]) }

type portsByName []*PortInfo

func (pp portsByName) Len() int           { return len(pp) }
func (pp portsByName) Swap(i, j int)      { pp[i], pp[j] = pp[j], pp[i] }
func (pp portsByName) Less(i, j int) bool { return lessPortName(pp[i].Name, pp[j].Name) }

func splitPortName(name string) (string, int) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return name, -1
	}
	return name[:i], n
}

func lessPortName(a, b string) bool {
	pa, na := splitPortName(a)
	pb, nb := splitPortName(b)
	if pa != pb || na < 0 || nb < 0 {
		return a < b
	}
	return na < nb
}

// ListPorts returns detailed info about serial ports on the system.
// If the detailed listing fails, the OS-specific enumeration is used.
func ListPorts() []*PortInfo {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		glog.Infof("detailed port listing failed: %s", err)
		var res []*PortInfo
		for _, name := range fallbackPorts() {
			res = append(res, &PortInfo{Name: name})
		}
		return res
	}
	res := mergePorts(details, fallbackPorts())
	sort.Stable(portsByName(res))
	return res
}

// mergePorts adds ports that only the fallback enumeration knows about.
func mergePorts(details []*enumerator.PortDetails, names []string) []*PortInfo {
	seen := map[string]bool{}
	var res []*PortInfo
	for _, d := range details {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		res = append(res, &PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VID:          strings.ToLower(d.VID),
			PID:          strings.ToLower(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			res = append(res, &PortInfo{Name: name})
		}
	}
	return res
}
