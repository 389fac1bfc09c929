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
)

// fallbackPorts is used when the detailed listing is not available.
// USB-UART bridges come before CDC ACM devices.
func fallbackPorts() []string {
	usb, _ := filepath.Glob("/dev/ttyUSB*")
	sort.Sort(portNames(usb))
	acm, _ := filepath.Glob("/dev/ttyACM*")
	sort.Sort(portNames(acm))
	return append(usb, acm...)
}

func ignoredPort(name string) bool {
	return false
}
