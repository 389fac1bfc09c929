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
	"time"

	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flags"
	"github.com/plant-monitor/espflash/cli/flash/esp/flasher"
)

func printConsoleLine(line string) {
	if *flags.Timestamp {
		fmt.Printf("[%s] ", time.Now().Format(time.StampMilli))
	}
	fmt.Println(line)
}

func console(ctx context.Context) error {
	opts, err := flashOptsFromFlags()
	if err != nil {
		return errors.Trace(err)
	}
	h := flashHooks()
	h.Progress = nil
	h.Console = printConsoleLine
	if err := flasher.Console(ctx, opts, h, *flags.ConsoleReset); err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
