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

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/descriptor"
)

// ErrNotAggregate the descriptor does not describe an aggregate
var ErrNotAggregate = errors.New("descriptor is not an aggregate")

// DefaultPool is the default engine pool
var DefaultPool = NewPool()

// Pool holds aggregate engines by id.
// Pool 聚合引擎池
type Pool struct {
	entries sync.Map
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{}
}

// Load builds an engine for every aggregate descriptor (*.yaml, *.yml, *.json)
// directly under folder. The engine id is the file name without extension.
// Descriptors of other kinds are skipped. Imports by name are looked up under folder.
func (p *Pool) Load(folder string, opts ...types.Option) error {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return err
	}
	opts = append([]types.Option{types.WithResourceManager(descriptor.NewFileResourceManager(folder))}, opts...)
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}
		spec, err := descriptor.LoadFile(filepath.Join(folder, name))
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		aggregate, ok := spec.(*types.AggregateSpecifier)
		if !ok {
			continue
		}
		if _, err := p.New(strings.TrimSuffix(name, filepath.Ext(name)), aggregate, opts...); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// New builds an engine and stores it under id. An engine already stored
// under id is returned as is.
func (p *Pool) New(id string, spec *types.AggregateSpecifier, opts ...types.Option) (*AggregateEngine, error) {
	if v, ok := p.entries.Load(id); ok {
		return v.(*AggregateEngine), nil
	}
	engine, err := NewAggregateEngine(spec, opts...)
	if err != nil {
		return nil, err
	}
	if actual, loaded := p.entries.LoadOrStore(id, engine); loaded {
		engine.Destroy()
		return actual.(*AggregateEngine), nil
	}
	return engine, nil
}

// NewFromDescriptor parses an aggregate descriptor and stores its engine under id
func (p *Pool) NewFromDescriptor(id string, data []byte, format string, opts ...types.Option) (*AggregateEngine, error) {
	spec, err := descriptor.Unmarshal(data, format)
	if err != nil {
		return nil, err
	}
	aggregate, ok := spec.(*types.AggregateSpecifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAggregate, spec.Kind())
	}
	return p.New(id, aggregate, opts...)
}

// Get returns the engine stored under id
func (p *Pool) Get(id string) (*AggregateEngine, bool) {
	v, ok := p.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*AggregateEngine), true
}

// Del destroys and removes the engine stored under id
func (p *Pool) Del(id string) {
	if v, ok := p.entries.LoadAndDelete(id); ok {
		v.(*AggregateEngine).Destroy()
	}
}

// Stop destroys and removes every engine
func (p *Pool) Stop() {
	p.entries.Range(func(key, value any) bool {
		p.Del(key.(string))
		return true
	})
}

// Range calls fn for every engine until fn returns false
func (p *Pool) Range(fn func(id string, engine *AggregateEngine) bool) {
	p.entries.Range(func(key, value any) bool {
		return fn(key.(string), value.(*AggregateEngine))
	})
}

// CollectionProcessComplete notifies every engine of the end of a collection
func (p *Pool) CollectionProcessComplete() error {
	var errs []error
	p.Range(func(id string, engine *AggregateEngine) bool {
		if err := engine.CollectionProcessComplete(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
		return true
	})
	return errors.Join(errs...)
}
