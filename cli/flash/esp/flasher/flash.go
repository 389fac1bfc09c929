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
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flash/esp"
	"github.com/plant-monitor/espflash/cli/flash/esp/frame"
	"github.com/plant-monitor/espflash/cli/flash/esp/loader"
	"github.com/plant-monitor/espflash/cli/flash/esp/transport"
	"github.com/plant-monitor/espflash/common/fwimage"
)

const (
	// Printed by the ROM when strapped for serial download.
	downloadModeBanner = "waiting for download"

	defaultWaitTimeout = 30 * time.Second
)

// Hooks connect a flashing session to the outside world. All are optional.
type Hooks struct {
	// Opens the port, serial by default.
	Open     transport.Opener
	Log      loader.LogFunc
	Progress loader.ProgressFunc
	// Text printed by the device outside of frames.
	Console func(line string)
}

func (h *Hooks) logf(format string, args ...interface{}) {
	if h.Log != nil {
		h.Log(fmt.Sprintf(format, args...))
	} else {
		glog.Infof(format, args...)
	}
}

// Flash writes a loaded image to the device connected to opts.Port.
func Flash(ctx context.Context, im *fwimage.Image, opts *esp.FlashOpts, h Hooks) error {
	if !im.Loaded() {
		return errors.Errorf("image is not loaded")
	}
	romBaudRate := opts.ROMBaudRate
	if romBaudRate == 0 {
		romBaudRate = esp.DefaultBaudRate
	}
	flashBaudRate := opts.FlasherBaudRate
	if flashBaudRate == romBaudRate {
		flashBaudRate = 0
	}
	if flashBaudRate > 0 {
		if err := esp.CheckBaudRate(flashBaudRate); err != nil {
			return errors.Trace(err)
		}
	}

	var ld *loader.Loader
	downloadMode := make(chan struct{}, 1)
	df := &frame.Deframer{
		OnFrame: func(f []byte) { ld.HandleFrame(f) },
		OnLine: func(line string) {
			if h.Console != nil {
				h.Console(line)
			} else {
				glog.V(1).Infof("<< %s", line)
			}
			if strings.Contains(line, downloadModeBanner) {
				select {
				case downloadMode <- struct{}{}:
				default:
				}
			}
		},
	}
	ctl := transport.NewController(opts.Port, h.Open, df.Feed)
	ctl.SetLogger(h.logf)
	ld = loader.New(ctl, loader.Options{
		Progress:       h.Progress,
		Log:            h.Log,
		FlashBaudRate:  flashBaudRate,
		CommandTimeout: opts.CommandTimeout,
		NoReset:        !opts.BootFirmware,
	})

	if err := ctl.Connect(ctx, romBaudRate); err != nil {
		return errors.Annotatef(err, "failed to connect to %s", opts.Port)
	}
	defer ctl.Disconnect()

	if opts.WaitForDownload {
		if err := waitForDownloadMode(ctx, ctl, downloadMode, opts.WaitTimeout, &h); err != nil {
			return errors.Trace(err)
		}
	}

	return errors.Trace(ld.Run(ctx, im.Partitions))
}

func waitForDownloadMode(ctx context.Context, ctl *transport.Controller, downloadMode <-chan struct{}, timeout time.Duration, h *Hooks) error {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	if err := ctl.ResetPulse(ctx); err != nil {
		return errors.Annotatef(err, "failed to reset the device")
	}
	h.logf("Waiting for the device to enter download mode...")
	select {
	case <-downloadMode:
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-time.After(timeout):
		return errors.Errorf("device did not enter download mode in %s", timeout)
	}
}

// Reset pulses the reset lines of the device on opts.Port.
func Reset(ctx context.Context, opts *esp.FlashOpts, h Hooks) error {
	baudRate := opts.ROMBaudRate
	if baudRate == 0 {
		baudRate = esp.DefaultBaudRate
	}
	df := &frame.Deframer{OnLine: h.Console}
	ctl := transport.NewController(opts.Port, h.Open, df.Feed)
	ctl.SetLogger(h.logf)
	if err := ctl.Connect(ctx, baudRate); err != nil {
		return errors.Annotatef(err, "failed to connect to %s", opts.Port)
	}
	defer ctl.Disconnect()
	return errors.Trace(ctl.ResetPulse(ctx))
}
