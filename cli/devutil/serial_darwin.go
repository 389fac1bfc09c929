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
	"path/filepath"
	"sort"
	"strings"
)

func fallbackPorts() []string {
	list, _ := filepath.Glob("/dev/cu.*")
	var res []string
	for _, s := range list {
		if !ignoredPort(s) {
			res = append(res, s)
		}
	}
	sort.Sort(portNames(res))
	return res
}

// Bluetooth and iAP devices show up as serial ports on macOS.
func ignoredPort(name string) bool {
	return strings.Contains(name, "Bluetooth-") ||
		strings.Contains(name, "-SPPDev") ||
		strings.Contains(name, "-WirelessiAP")
}
