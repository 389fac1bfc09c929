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

	"github.com/golang/glog"
	"golang.org/x/sys/windows/registry"
)

// fallbackPorts reads the COM port map from the registry.
func fallbackPorts() []string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM\`, registry.QUERY_VALUE)
	if err != nil {
		glog.V(1).Infof("SERIALCOMM: %s", err)
		return nil
	}
	defer k.Close()
	names, err := k.ReadValueNames(0)
	if err != nil {
		glog.V(1).Infof("SERIALCOMM: %s", err)
		return nil
	}
	var res []string
	for _, n := range names {
		if port, _, err := k.GetStringValue(n); err == nil {
			res = append(res, port)
		}
	}
	sort.Sort(portNames(res))
	return res
}

// COM1 and COM2 are usually on-board ports.
func ignoredPort(name string) bool {
	return name == "COM1" || name == "COM2"
}
