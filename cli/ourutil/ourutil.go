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
package ourutil

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/golang/glog"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
)

func Reportf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	glog.Infof(f, args...)
}

// ReportOKf is Reportf in green.
func ReportOKf(f string, args ...interface{}) {
	okColor.Fprintf(os.Stderr, f+"\n", args...)
	glog.Infof(f, args...)
}

// ReportFailf is Reportf in red.
func ReportFailf(f string, args ...interface{}) {
	failColor.Fprintf(os.Stderr, f+"\n", args...)
	glog.Errorf(f, args...)
}

// Progress prints a progress line that is updated in place.
func Progress(w io.Writer, what string, pct int) {
	fmt.Fprintf(w, "\r  %s: %3d%%", what, pct)
	if pct >= 100 {
		fmt.Fprintln(w)
	}
	glog.V(1).Infof("%s: %d%%", what, pct)
}
