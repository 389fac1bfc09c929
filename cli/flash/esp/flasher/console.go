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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flash/esp"
	"github.com/plant-monitor/espflash/cli/flash/esp/frame"
	"github.com/plant-monitor/espflash/cli/flash/esp/transport"
)

// Console passes every line the device prints to h.Console until ctx is
// cancelled. With reset set, the device is restarted first so that the boot
// log is not missed. Cancellation is a normal exit.
func Console(ctx context.Context, opts *esp.FlashOpts, h Hooks, reset bool) error {
	if h.Console == nil {
		return errors.Errorf("no console output")
	}
	baudRate := opts.ROMBaudRate
	if baudRate == 0 {
		baudRate = esp.DefaultBaudRate
	}
	df := &frame.Deframer{
		OnLine: h.Console,
		OnFrame: func(f []byte) {
			glog.V(1).Infof("dropping a %d byte frame", len(f))
		},
	}
	ctl := transport.NewController(opts.Port, h.Open, df.Feed)
	ctl.SetLogger(h.logf)
	if err := ctl.Connect(ctx, baudRate); err != nil {
		return errors.Annotatef(err, "failed to connect to %s", opts.Port)
	}
	defer ctl.Disconnect()
	h.logf("Connected to %s at %d, press Ctrl-C to exit", opts.Port, baudRate)
	if reset {
		if err := ctl.ResetPulse(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Annotatef(err, "failed to reset the device")
		}
	}
	select {
	case <-ctx.Done():
		return nil
	case <-ctl.Closed():
		return errors.Errorf("%s closed", opts.Port)
	}
}
