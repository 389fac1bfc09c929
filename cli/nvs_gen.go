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
	"io/ioutil"

	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/cli/flags"
	"github.com/plant-monitor/espflash/cli/ourutil"
)

func genNVS(ctx context.Context) error {
	cfg, err := nvsConfigFromFlags()
	if err != nil {
		return errors.Trace(err)
	}
	np, err := nvsPartitionFromConfig(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := np.Finalize()
	if err != nil {
		return errors.Trace(err)
	}
	if err := ioutil.WriteFile(*flags.Output, data, 0644); err != nil {
		return errors.Annotatef(err, "failed to write %s", *flags.Output)
	}
	ourutil.Reportf("Wrote %s: %d bytes, %d pages used", *flags.Output, len(data), len(np.Pages()))
	return nil
}
