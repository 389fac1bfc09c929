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
package nvs

import (
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Partition accumulates entries into pages. Exactly one page, the last one,
// is active at any time; when an entry does not fit, the active page is
// marked full and a new one is started.
type Partition struct {
	size       int
	pages      []*Page
	namespaces map[string]uint8
}

// NewPartition creates a builder for a partition of the given size in bytes.
func NewPartition(size int) *Partition {
	return &Partition{
		size:       size,
		namespaces: make(map[string]uint8),
	}
}

func (p *Partition) Size() int {
	return p.size
}

func (p *Partition) Pages() []*Page {
	return p.pages
}

// NamespaceIndex returns the index assigned to the namespace, if any.
func (p *Partition) NamespaceIndex(name string) (uint8, bool) {
	idx, ok := p.namespaces[name]
	return idx, ok
}

// WriteEntry adds a value under namespace/key. Supported values are integers,
// booleans and strings.
func (p *Partition) WriteEntry(namespace, key string, value interface{}) error {
	if err := checkKey(namespace); err != nil {
		return errors.Annotatef(err, "invalid namespace")
	}
	// Validate the entry before the namespace record is written.
	e, err := newEntry(0, key, value)
	if err != nil {
		return errors.Annotatef(err, "%s", namespace)
	}
	ns, err := p.namespace(namespace)
	if err != nil {
		return errors.Trace(err)
	}
	e.NS = ns
	glog.V(2).Infof("%s.%s: %s, %d blocks", namespace, key, e.Type, e.Span())
	return errors.Trace(p.append(e))
}

func (p *Partition) namespace(name string) (uint8, error) {
	if idx, ok := p.namespaces[name]; ok {
		return idx, nil
	}
	if len(p.namespaces) >= maxNamespaces {
		return 0, errors.Errorf("too many namespaces")
	}
	idx := uint8(len(p.namespaces) + 1)
	e, err := newPrimitiveEntry(0, name, TypeU8, uint64(idx))
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err := p.append(e); err != nil {
		return 0, errors.Trace(err)
	}
	p.namespaces[name] = idx
	glog.V(1).Infof("namespace %s -> %d", name, idx)
	return idx, nil
}

func (p *Partition) activePage() *Page {
	if len(p.pages) == 0 {
		p.pages = append(p.pages, newPage(0))
	}
	return p.pages[len(p.pages)-1]
}

func (p *Partition) append(e *Entry) error {
	page := p.activePage()
	if !page.fits(e) {
		page.markFull()
		page = newPage(page.Seq() + 1)
		p.pages = append(p.pages, page)
		glog.V(1).Infof("page %d full, started page %d", page.Seq()-1, page.Seq())
	}
	return errors.Trace(page.add(e))
}

// Finalize serializes all pages and pads the result with 0xff to the
// partition size.
func (p *Partition) Finalize() ([]byte, error) {
	if p.size <= 0 || p.size%PageSize != 0 {
		return nil, errors.Errorf("partition size must be a multiple of %d, got %d", PageSize, p.size)
	}
	if n := len(p.pages) * PageSize; n > p.size {
		return nil, errors.Errorf("data does not fit: %d pages (%d bytes), partition size is %d", len(p.pages), n, p.size)
	}
	b := make([]byte, p.size)
	for i := range b {
		b[i] = 0xff
	}
	for i, page := range p.pages {
		copy(b[i*PageSize:], page.Bytes())
	}
	return b, nil
}
