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
package multierror

import (
	"bytes"
	"fmt"
)

// Error bundles multiple errors and make them obey the error interface
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	buf := bytes.NewBuffer(nil)

	fmt.Fprintf(buf, "%d error(s) occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(buf, "\n%s", err)
	}
	return buf.String()
}

// Errors returns the bundled errors in the order they were added.
func (e *Error) Errors() []error {
	return e.errs
}

// Append adds errs to err, which can be nil, a multierror or any other error.
// Nil errors are skipped and nested multierrors are flattened; if there is
// nothing to add, err is returned as is.
func Append(err error, errs ...error) error {
	var add []error
	for _, e := range errs {
		switch e := e.(type) {
		case nil:
		case *Error:
			add = append(add, e.errs...)
		default:
			add = append(add, e)
		}
	}
	if len(add) == 0 {
		return err
	}
	switch err := err.(type) {
	case nil:
		return &Error{add}
	case *Error:
		err.errs = append(err.errs, add...)
		return err
	default:
		return &Error{append([]error{err}, add...)}
	}
}
