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
	"os"

	"github.com/juju/errors"

	clicommon "github.com/plant-monitor/espflash/cli/common"
	"github.com/plant-monitor/espflash/cli/devutil"
	"github.com/plant-monitor/espflash/cli/flags"
	"github.com/plant-monitor/espflash/cli/flash/esp"
	"github.com/plant-monitor/espflash/cli/flash/esp/flasher"
	"github.com/plant-monitor/espflash/cli/ourutil"
	"github.com/plant-monitor/espflash/common/fwimage"
	"github.com/plant-monitor/espflash/common/nvs"
)

func flashOptsFromFlags() (*esp.FlashOpts, error) {
	port, err := devutil.GetPort()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &esp.FlashOpts{
		Port:            port,
		ROMBaudRate:     *flags.BaudRate,
		FlasherBaudRate: *flags.FlashBaudRate,
		CommandTimeout:  *flags.CommandTimeout,
		WaitForDownload: *flags.WaitForDownload,
		WaitTimeout:     *flags.WaitTimeout,
		BootFirmware:    *flags.BootFirmware,
	}, nil
}

func flashHooks() flasher.Hooks {
	return flasher.Hooks{
		Log: func(line string) { ourutil.Reportf("%s", line) },
		Progress: func(id string, pct int) {
			ourutil.Progress(os.Stderr, id, pct)
		},
		Console: func(line string) { ourutil.Reportf("<< %s", line) },
	}
}

func nvsConfigFromFlags() (nvs.Config, error) {
	cfg := nvs.Config{}
	if *flags.NVSConfig != "" {
		fc, err := nvs.LoadConfig(*flags.NVSConfig, *flags.NVSNamespace)
		if err != nil {
			return nil, errors.Trace(err)
		}
		cfg.Merge(fc)
	}
	sc, err := clicommon.ParseNVSValues(*flags.NVSSet, *flags.NVSNamespace)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid --nvs-set")
	}
	cfg.Merge(sc)
	return cfg, nil
}

func nvsPartitionFromConfig(cfg nvs.Config) (*nvs.Partition, error) {
	np := nvs.NewPartition(*flags.NVSSize)
	if err := nvs.ApplyConfig(np, cfg); err != nil {
		return nil, errors.Trace(err)
	}
	return np, nil
}

func imageFromFlags(ctx context.Context) (*fwimage.Image, error) {
	nvsCfg, err := nvsConfigFromFlags()
	if err != nil {
		return nil, errors.Trace(err)
	}
	placeholders, err := clicommon.ParseParamValues(*flags.Placeholders)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid --placeholder")
	}

	if *flags.Manifest != "" {
		m, err := fwimage.LoadManifest(*flags.Manifest)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return m.Image(nvsCfg, placeholders)
	}

	var opts fwimage.LayoutOpts
	if *flags.GitHubRepo != "" {
		gh := &fwimage.GitHubReleases{Token: *flags.GitHubToken}
		rel, err := gh.Latest(ctx, *flags.GitHubRepo, *flags.GitHubTag)
		if err != nil {
			return nil, errors.Trace(err)
		}
		ourutil.Reportf("Using release %s (%s)", rel.Tag, rel.Name)
		opts = rel.Layout()
	} else {
		opts = fwimage.LayoutOpts{
			Bootloader:     fwimage.ParseSource(*flags.Bootloader, ""),
			PartitionTable: fwimage.ParseSource(*flags.PartitionTable, ""),
			App:            fwimage.ParseSource(*flags.App, ""),
		}
	}
	if *flags.SkipBootloader {
		opts.Bootloader = nil
	}
	if *flags.SkipPartitionTable {
		opts.PartitionTable = nil
	}
	if *flags.SkipApp {
		opts.App = nil
	}
	if !*flags.SkipNVS && len(nvsCfg) > 0 {
		np, err := nvsPartitionFromConfig(nvsCfg)
		if err != nil {
			return nil, errors.Trace(err)
		}
		opts.NVS = np
		opts.NVSOffset = *flags.NVSOffset
	}
	opts.Placeholders = placeholders
	return fwimage.DefaultImage(opts), nil
}

func flash(ctx context.Context) error {
	im, err := imageFromFlags(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := im.Load(ctx); err != nil {
		return errors.Trace(err)
	}
	for _, p := range im.Partitions {
		ourutil.Reportf("  %s, %d bytes", p, len(p.Data()))
	}
	opts, err := flashOptsFromFlags()
	if err != nil {
		return errors.Trace(err)
	}
	if err := flasher.Flash(ctx, im, opts, flashHooks()); err != nil {
		ourutil.ReportFailf("Flashing failed")
		return errors.Trace(err)
	}
	ourutil.ReportOKf("All done!")
	return nil
}

func reset(ctx context.Context) error {
	opts, err := flashOptsFromFlags()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(flasher.Reset(ctx, opts, flashHooks()))
}
