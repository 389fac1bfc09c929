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
package flasher

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/plant-monitor/espflash/cli/flash/esp"
)

// collect returns a console hook that cancels the context once a line
// containing last has been seen.
func collect(out *output, last string, cancel context.CancelFunc) func(string) {
	return func(line string) {
		out.onConsole(line)
		if strings.Contains(line, last) {
			cancel()
		}
	}
}

func TestConsole(t *testing.T) {
	for i, c := range []struct {
		reset bool
		dtr   []bool
		want  []string
	}{
		{false, nil, []string{"I (31) boot: ESP-IDF v4.4", "I (120) app: moisture 42%"}},
		{true, []bool{false, true}, []string{
			"rst:0x1 (POWERON_RESET),boot:0x3 (DOWNLOAD_BOOT(UART0/UART1/SDIO_REI_REO_V2))",
			"waiting for download",
		}},
	} {
		d := newFakeDevice()
		if !c.reset {
			d.rx <- []byte("I (31) boot: ESP-IDF v4.4\r\nI (120) app: mois")
			d.rx <- []byte("ture 42%\r\n")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		out := &output{}
		h := Hooks{Open: d.open, Log: out.log, Console: collect(out, c.want[len(c.want)-1], cancel)}
		if err := Console(ctx, &esp.FlashOpts{Port: "fake"}, h, c.reset); err != nil {
			t.Fatalf("%d: console failed: %s", i, err)
		}
		if ctx.Err() == context.DeadlineExceeded {
			t.Fatalf("%d: timed out, got %q", i, out.console)
		}
		cancel()
		if !reflect.DeepEqual(out.console, c.want) {
			t.Fatalf("%d: want %q, got %q", i, c.want, out.console)
		}
		if !reflect.DeepEqual(d.dtr, c.dtr) {
			t.Fatalf("%d: unexpected DTR sequence %v", i, d.dtr)
		}
		if !contains(out.lines, "press Ctrl-C to exit") {
			t.Fatalf("%d: unexpected output %q", i, out.lines)
		}
	}
}

func TestConsoleNoOutput(t *testing.T) {
	d := newFakeDevice()
	if err := Console(context.Background(), &esp.FlashOpts{Port: "fake"}, Hooks{Open: d.open}, false); err == nil {
		t.Fatalf("console without output accepted")
	}
}
