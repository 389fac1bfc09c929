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
package fwimage

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/plant-monitor/espflash/version"
)

// Source provides the contents of a binary partition.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

type fileSource string

// FileSource reads a local file.
func FileSource(path string) Source {
	return fileSource(path)
}

func (s fileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := ioutil.ReadFile(string(s))
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s", string(s))
	}
	return data, nil
}

func (s fileSource) String() string {
	return string(s)
}

type urlSource struct {
	url    string
	accept string
	client *http.Client
}

// URLSource fetches data with an HTTP GET.
func URLSource(url string) Source {
	return &urlSource{url: url, client: http.DefaultClient}
}

func (s *urlSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequest("GET", s.url, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid URL %s", s.url)
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", version.GetUserAgent())
	if s.accept != "" {
		req.Header.Set("Accept", s.accept)
	}
	glog.V(1).Infof("GET %s", s.url)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to fetch %s", s.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("got %d status code when fetching %s", resp.StatusCode, s.url)
	}
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to fetch %s", s.url)
	}
	return data, nil
}

func (s *urlSource) String() string {
	return s.url
}

type bytesSource []byte

// BytesSource serves data that is already in memory.
func BytesSource(data []byte) Source {
	return bytesSource(data)
}

func (s bytesSource) Fetch(ctx context.Context) ([]byte, error) {
	data := make([]byte, len(s))
	copy(data, s)
	return data, nil
}

func (s bytesSource) String() string {
	return fmt.Sprintf("<%d bytes>", len(s))
}

// ParseSource treats http:// and https:// locations as URLs, everything
// else as files. Relative file names are resolved against baseDir.
func ParseSource(loc, baseDir string) Source {
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return URLSource(loc)
	}
	if baseDir != "" && !filepath.IsAbs(loc) {
		loc = filepath.Join(baseDir, loc)
	}
	return FileSource(loc)
}
