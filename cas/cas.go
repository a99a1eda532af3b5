/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cas is an in-memory CAS: named views over one shared base, each
// view holding a document text, a language and a flat annotation list.
//
// Package cas 内存CAS实现：同一底层结构上的多个命名视图。
package cas

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rulego/casflow/api/types"
)

var (
	// ErrViewNotFound the requested view does not exist
	ErrViewNotFound = errors.New("view not found")
	// ErrViewExists the view to create already exists
	ErrViewExists = errors.New("view already exists")
)

type view struct {
	name        string
	text        string
	language    string
	annotations []types.Annotation
}

// base is shared by every view of one CAS
type base struct {
	id               string
	generation       uint64
	released         bool
	views            map[string]*view
	currentComponent *types.ComponentInfo
	pool             *Pool
}

func newBase(id string, pool *Pool) *base {
	b := &base{pool: pool}
	b.reset(id)
	return b
}

func (b *base) reset(id string) {
	b.id = id
	b.generation++
	b.released = false
	b.currentComponent = nil
	b.views = map[string]*view{
		types.DefaultView: {name: types.DefaultView},
	}
}

// Cas is a CAS bound to one view. The zero view means the base CAS, which
// resolves document accessors against the default view.
type Cas struct {
	base       *base
	generation uint64
	view       *view
}

var _ types.CAS = (*Cas)(nil)

// New creates a CAS that does not belong to any pool
func New() *Cas {
	b := newBase(newId(), nil)
	return &Cas{base: b, generation: b.generation, view: b.views[types.DefaultView]}
}

func (c *Cas) Id() string {
	return c.base.id
}

func (c *Cas) ViewName() string {
	if c.view == nil {
		return ""
	}
	return c.view.name
}

func (c *Cas) current() *view {
	if c.view != nil {
		return c.view
	}
	return c.base.views[c.base.currentComponent.MapView(types.DefaultView)]
}

// View returns the view registered under name, after mapping name through
// the sofa mappings of the component currently processing the CAS.
func (c *Cas) View(name string) (types.CAS, error) {
	absolute := c.base.currentComponent.MapView(name)
	v, ok := c.base.views[absolute]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, absolute)
	}
	return &Cas{base: c.base, generation: c.generation, view: v}, nil
}

// CreateView creates a view, mapping name the same way View does
func (c *Cas) CreateView(name string) (types.CAS, error) {
	absolute := c.base.currentComponent.MapView(name)
	if _, ok := c.base.views[absolute]; ok {
		return nil, fmt.Errorf("%w: %s", ErrViewExists, absolute)
	}
	v := &view{name: absolute}
	c.base.views[absolute] = v
	return &Cas{base: c.base, generation: c.generation, view: v}, nil
}

func (c *Cas) ViewNames() []string {
	names := make([]string, 0, len(c.base.views))
	for k := range c.base.views {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c *Cas) BaseCas() types.CAS {
	return &Cas{base: c.base, generation: c.generation}
}

func (c *Cas) DocumentText() string {
	if v := c.current(); v != nil {
		return v.text
	}
	return ""
}

func (c *Cas) SetDocumentText(text string) {
	if v := c.current(); v != nil {
		v.text = text
	}
}

func (c *Cas) DocumentLanguage() string {
	if v := c.current(); v != nil && v.language != "" {
		return v.language
	}
	return types.LanguageUnspecified
}

func (c *Cas) SetDocumentLanguage(language string) {
	if v := c.current(); v != nil {
		v.language = language
	}
}

func (c *Cas) AddAnnotation(annotation types.Annotation) {
	if v := c.current(); v != nil {
		v.annotations = append(v.annotations, annotation)
	}
}

func (c *Cas) Annotations(typeName string) []types.Annotation {
	v := c.current()
	if v == nil {
		return nil
	}
	var result []types.Annotation
	for _, a := range v.annotations {
		if typeName == "" || a.Type == typeName {
			result = append(result, a)
		}
	}
	return result
}

func (c *Cas) CurrentComponent() *types.ComponentInfo {
	return c.base.currentComponent
}

func (c *Cas) SetCurrentComponent(info *types.ComponentInfo) {
	c.base.currentComponent = info
}

// Release returns the CAS to its pool. Every view releases the same CAS and
// only the first call has an effect; handles kept from before a release are
// inert once the pool hands the base out again.
func (c *Cas) Release() {
	if c.base.pool != nil {
		c.base.pool.release(c)
		return
	}
	if c.generation == c.base.generation {
		c.base.released = true
	}
}

// Released reports whether this handle's CAS was released
func (c *Cas) Released() bool {
	return c.generation != c.base.generation || c.base.released
}
