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
	"fmt"
	"sync"

	"github.com/rulego/casflow/api/types"
)

// FactoryRegistry is an ordered set of component factories. Produce asks the
// most recently registered factory first, so a later factory overrides an
// earlier one for the specifiers both accept.
//
// FactoryRegistry 有序的组件工厂集合，后注册的工厂优先。
type FactoryRegistry struct {
	lock      sync.RWMutex
	factories []types.ComponentFactory
}

var _ types.FactoryRegistry = (*FactoryRegistry)(nil)

// NewFactoryRegistry creates a registry holding factories in registration order
func NewFactoryRegistry(factories ...types.ComponentFactory) *FactoryRegistry {
	r := &FactoryRegistry{}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// DefaultFactories returns a registry that builds primitive and aggregate engines
func DefaultFactories() *FactoryRegistry {
	return NewFactoryRegistry(&PrimitiveFactory{}, &AggregateFactory{})
}

func (r *FactoryRegistry) Register(factory types.ComponentFactory) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.factories = append(r.factories, factory)
}

func (r *FactoryRegistry) Produce(spec types.ComponentSpecifier, ctx types.FactoryContext) (types.AnalysisEngine, error) {
	r.lock.RLock()
	factories := make([]types.ComponentFactory, len(r.factories))
	copy(factories, r.factories)
	r.lock.RUnlock()

	if ctx.Factories == nil {
		ctx.Factories = r
	}
	for i := len(factories) - 1; i >= 0; i-- {
		engine, ok, err := factories[i].Produce(spec, ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return engine, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", types.ErrNoFactory, spec.Kind(), ctx.Key)
}

// PrimitiveFactory builds engines for primitive specifiers
type PrimitiveFactory struct {
}

func (f *PrimitiveFactory) Produce(spec types.ComponentSpecifier, ctx types.FactoryContext) (types.AnalysisEngine, bool, error) {
	primitive, ok := spec.(*types.PrimitiveSpecifier)
	if !ok {
		return nil, false, nil
	}
	engine, err := NewPrimitiveEngine(primitive, ctx)
	return engine, true, err
}

// AggregateFactory builds nested aggregate engines
type AggregateFactory struct {
}

func (f *AggregateFactory) Produce(spec types.ComponentSpecifier, ctx types.FactoryContext) (types.AnalysisEngine, bool, error) {
	aggregate, ok := spec.(*types.AggregateSpecifier)
	if !ok {
		return nil, false, nil
	}
	engine, err := newAggregateEngine(aggregate, ctx)
	return engine, true, err
}
