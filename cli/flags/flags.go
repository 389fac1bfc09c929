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
package flags

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/plant-monitor/espflash/cli/flash/esp"
	"github.com/plant-monitor/espflash/cli/flash/esp/loader"
	"github.com/plant-monitor/espflash/common/nvs"
)

var (
	Port = flag.String("port", "auto", "Serial port where the device is connected. "+
		"If set to 'auto', ports on the system will be enumerated and the first will be used.")
	BaudRate      = flag.Uint("baud-rate", esp.DefaultBaudRate, "Data port speed when talking to ROM loader")
	FlashBaudRate = flag.Uint("flash-baud-rate", 921600,
		"Data port speed during flashing. 0 - don't change (== --baud-rate)")
	CommandTimeout  = flag.Duration("command-timeout", loader.DefaultCommandTimeout, "Timeout for a single loader command")
	WaitForDownload = flag.Bool("wait-for-download", false,
		"Reset the device and start flashing when it reports that it is waiting for download")
	WaitTimeout = flag.Duration("wait-timeout", 30*time.Second, "How long to wait for the device to enter download mode")
	BootFirmware = flag.Bool("boot-after-flashing", true, "Boot the firmware after flashing")

	Manifest       = flag.String("manifest", "", "Image manifest (YAML). If set, the layout flags are ignored.")
	Bootloader     = flag.String("bootloader", "bootloader.bin", "Bootloader binary, file or URL")
	PartitionTable = flag.String("partition-table", "partition-table.bin", "Partition table binary, file or URL")
	App            = flag.String("app", "program.bin", "Application binary, file or URL")

	SkipBootloader     = flag.Bool("skip-bootloader", false, "Do not flash the bootloader")
	SkipPartitionTable = flag.Bool("skip-partition-table", false, "Do not flash the partition table")
	SkipNVS            = flag.Bool("skip-nvs", false, "Do not flash the NVS partition")
	SkipApp            = flag.Bool("skip-app", false, "Do not flash the application")

	NVSConfig    = flag.String("nvs-config", "", "NVS values, .yaml or .ini file")
	NVSSet       = flag.StringArray("nvs-set", []string{}, `NVS value in the format "[namespace.]key=value". Can be used multiple times.`)
	NVSNamespace = flag.String("nvs-namespace", nvs.DefaultNamespace, "Namespace for NVS values given without one")
	NVSOffset    = flag.Uint32("nvs-offset", nvs.DefaultOffset, "NVS partition offset")
	NVSSize      = flag.Int("nvs-size", nvs.DefaultSize, "NVS partition size")

	Placeholders = flag.StringArray("placeholder", []string{}, `Value for a PLACEHOLDER_FOR marker in the application, "NAME=VALUE". Can be used multiple times.`)

	GitHubRepo  = flag.String("github-repo", "", "Flash binaries from the latest release of this GitHub repo (owner/repo)")
	GitHubTag   = flag.String("github-tag", "", "Use this release tag instead of the latest one")
	GitHubToken = flag.String("github-token", "", "GitHub access token, for private repos")

	ConsoleReset = flag.Bool("console-reset", false, "Reset the device before starting the console, to see the boot log")
	Timestamp    = flag.Bool("timestamp", false, "Prefix console lines with the time they were received")

	Output = flag.StringP("output", "o", "", "Output file")
)
