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
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/plant-monitor/espflash/cli/devutil"
)

func listPorts(ctx context.Context) error {
	ports := devutil.ListPorts()
	if len(ports) == 0 {
		fmt.Fprintf(os.Stderr, "No serial ports found\n")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range ports {
		if p.USB {
			fmt.Fprintf(w, "%s\tUSB %s:%s\t%s\t%s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Fprintf(w, "%s\t\t\t\n", p.Name)
		}
	}
	return w.Flush()
}
