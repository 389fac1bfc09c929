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
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flags"
	"github.com/plant-monitor/espflash/cli/ourutil"
)

var defaultPort string

// GetPort returns --port, or picks one from the ports on the system if it
// is "auto". The choice is made once per run.
func GetPort() (string, error) {
	if *flags.Port != "auto" {
		return *flags.Port, nil
	}
	if defaultPort == "" {
		p := PickPort(ListPorts())
		if p == nil {
			return "", errors.Errorf("--port not specified and none were found")
		}
		defaultPort = p.Name
		if p.USB {
			ourutil.Reportf("Using port %s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
		} else {
			ourutil.Reportf("Using port %s", p.Name)
		}
	}
	return defaultPort, nil
}

// PickPort prefers USB ports, since ESP boards talk through a USB-UART
// bridge. Ports that are usually built-in (COM1, Bluetooth) are never picked.
// Returns nil if there is nothing suitable.
func PickPort(ports []*PortInfo) *PortInfo {
	var other *PortInfo
	for _, p := range ports {
		if ignoredPort(p.Name) {
			continue
		}
		if p.USB {
			return p
		}
		if other == nil {
			other = p
		}
	}
	return other
}
