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
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/plant-monitor/espflash/common/pflagenv"
	"github.com/plant-monitor/espflash/version"
)

const (
	envPrefix = "ESPFLASH_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

var (
	// put all commands here
	commands = []command{
		{"flash", flash, `Flash firmware to the device`, []string{}, []string{"port", "manifest", "github-repo", "nvs-config", "nvs-set", "placeholder", "wait-for-download"}},
		{"gen-nvs", genNVS, `Generate an NVS partition image`, []string{"output"}, []string{"nvs-config", "nvs-set", "nvs-namespace", "nvs-size"}},
		{"console", console, `Print the device's serial output`, []string{}, []string{"port", "baud-rate", "console-reset", "timestamp"}},
		{"ports", listPorts, `List serial ports`, []string{}, []string{}},
		{"reset", reset, `Reset the device`, []string{}, []string{"port"}},
		{"version", showVersion, `Show version`, []string{}, []string{}},
	}
)

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

type handler func(ctx context.Context) error

func run(ctx context.Context) error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			// check required flags
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			// run the handler
			if err := c.handler(ctx); err != nil {
				return errors.Trace(err)
			}
			return nil
		}
	}
	// not found
	usage()
	return nil
}

func showVersion(ctx context.Context) error {
	fmt.Printf(
		"%s\nVersion: %s\nBuild ID: %s\n",
		"ESP32 flasher and NVS generator", version.GetVersion(), version.BuildId,
	)
	return nil
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		showVersion(context.Background())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		glog.Infof("Got %s, cancelling", sig)
		cancel()
	}()

	err := run(ctx)
	cancel()
	glog.Flush()
	if err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
