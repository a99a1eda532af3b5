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
	"sync"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/cas"
)

// ErrUnsupportedOutput a CAS multiplier returned a CAS the engine cannot route
var ErrUnsupportedOutput = errors.New("unsupported CAS returned by CAS multiplier")

// PrimitiveEngine runs one annotator or CAS multiplier as a delegate.
//
// Component instances hold per-call state (result specification, pending
// segments), so every call works on an instance of its own: idle instances
// are reused, a new one is created and initialized when all are busy. A CAS
// multiplier instance stays busy until its outputs are drained or released.
//
// PrimitiveEngine 原子引擎，以委托组件的方式运行一个标注器或CAS复制器，
// 每次调用独占一个组件实例。
type PrimitiveEngine struct {
	key            string
	implementation string
	metadata       *types.ComponentMetadata
	registry       types.ComponentRegistry
	ctx            *componentContext
	configuration  types.Configuration
	multiplier     bool
	casInterface   string
	info           *types.ComponentInfo

	lock       sync.Mutex
	idle       []types.Annotator
	all        []types.Annotator
	resultSpec *types.ResultSpecification
	destroyed  bool
}

var _ types.AnalysisEngine = (*PrimitiveEngine)(nil)

// NewPrimitiveEngine instantiates spec.Implementation from the configured
// component registry and initializes it.
func NewPrimitiveEngine(spec *types.PrimitiveSpecifier, ctx types.FactoryContext) (*PrimitiveEngine, error) {
	registry := ctx.Config.ComponentsRegistry
	if registry == nil {
		registry = Registry
	}
	component, err := registry.NewComponent(spec.Implementation)
	if err != nil {
		return nil, fmt.Errorf("delegate %s: %w", ctx.Key, err)
	}
	annotator, ok := component.(types.Annotator)
	if !ok {
		return nil, fmt.Errorf("%w: delegate %s, implementation %s", types.ErrNotAnnotator, ctx.Key, spec.Implementation)
	}
	metadata := spec.Metadata().Copy()
	if metadata.Name == "" {
		metadata.Name = ctx.Key
	}
	e := &PrimitiveEngine{
		key:            ctx.Key,
		implementation: spec.Implementation,
		metadata:       metadata,
		registry:       registry,
		configuration:  processGlobalPlaceholders(ctx.Config, spec.Configuration),
		casInterface:   types.CasInterfaceCAS,
		info:           &types.ComponentInfo{Key: ctx.Key, SofaMappings: ctx.SofaMappings},
	}
	if _, ok := component.(types.CasMultiplier); ok {
		e.multiplier = true
		metadata.OperationalProperties.OutputsNewCases = true
	}
	if getter, ok := component.(types.CasInterfaceGetter); ok {
		e.casInterface = getter.RequiredCasInterface()
	}
	e.ctx = &componentContext{key: ctx.Key, config: ctx.Config, metadata: metadata}
	if err := annotator.Init(e.ctx, e.configuration); err != nil {
		return nil, fmt.Errorf("init delegate %s: %w", ctx.Key, err)
	}
	e.idle = []types.Annotator{annotator}
	e.all = []types.Annotator{annotator}
	return e, nil
}

// Key delegate key
func (e *PrimitiveEngine) Key() string {
	return e.key
}

func (e *PrimitiveEngine) Metadata() *types.ComponentMetadata {
	return e.metadata
}

// Instances number of component instances created so far
func (e *PrimitiveEngine) Instances() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.all)
}

// acquire takes an idle instance or creates one
func (e *PrimitiveEngine) acquire() (types.Annotator, *types.ResultSpecification, error) {
	e.lock.Lock()
	if e.destroyed {
		e.lock.Unlock()
		return nil, nil, fmt.Errorf("delegate %s is destroyed", e.key)
	}
	defaultSpec := e.resultSpec
	if n := len(e.idle); n > 0 {
		annotator := e.idle[n-1]
		e.idle = e.idle[:n-1]
		e.lock.Unlock()
		return annotator, defaultSpec, nil
	}
	e.lock.Unlock()

	component, err := e.registry.NewComponent(e.implementation)
	if err != nil {
		return nil, nil, fmt.Errorf("delegate %s: %w", e.key, err)
	}
	annotator, ok := component.(types.Annotator)
	if !ok {
		return nil, nil, fmt.Errorf("%w: delegate %s, implementation %s", types.ErrNotAnnotator, e.key, e.implementation)
	}
	if err := annotator.Init(e.ctx, e.configuration); err != nil {
		return nil, nil, fmt.Errorf("init delegate %s: %w", e.key, err)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.destroyed {
		annotator.Destroy()
		return nil, nil, fmt.Errorf("delegate %s is destroyed", e.key)
	}
	e.all = append(e.all, annotator)
	return annotator, defaultSpec, nil
}

// release gives an instance back, instances of a destroyed engine are destroyed
func (e *PrimitiveEngine) release(annotator types.Annotator) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.destroyed {
		annotator.Destroy()
		return
	}
	e.idle = append(e.idle, annotator)
}

// ProcessAndOutputNewCASes hands the CAS to the annotator in the abstraction
// it requires. For a CAS multiplier the returned iterator pulls its outputs.
func (e *PrimitiveEngine) ProcessAndOutputNewCASes(c types.CAS) (types.CasIterator, error) {
	return e.process(c, nil)
}

// ProcessWithResultSpecification is ProcessAndOutputNewCASes with rs set on
// the instance doing the work for this call only
func (e *PrimitiveEngine) ProcessWithResultSpecification(c types.CAS, rs *types.ResultSpecification) (types.CasIterator, error) {
	return e.process(c, rs)
}

func (e *PrimitiveEngine) process(c types.CAS, rs *types.ResultSpecification) (types.CasIterator, error) {
	view, err := viewFor(c, e.info, e.metadata.SofaAware)
	if err != nil {
		return nil, err
	}
	annotator, defaultSpec, err := e.acquire()
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = defaultSpec
	}
	if setter, ok := annotator.(types.ResultSpecSetter); ok {
		setter.SetResultSpecification(rs)
	}
	if err := annotator.Process(cas.Adapt(view, e.casInterface)); err != nil {
		if multiplier, ok := annotator.(types.CasMultiplier); ok {
			drain(multiplier)
		}
		e.release(annotator)
		return nil, err
	}
	if !e.multiplier {
		e.release(annotator)
		return emptyCasIterator{}, nil
	}
	return &multiplierIterator{engine: e, multiplier: annotator.(types.CasMultiplier)}, nil
}

// SetResultSpecification sets the result specification of calls that carry none
func (e *PrimitiveEngine) SetResultSpecification(rs *types.ResultSpecification) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.resultSpec = rs
}

func (e *PrimitiveEngine) CollectionProcessComplete() error {
	e.lock.Lock()
	instances := append([]types.Annotator(nil), e.all...)
	e.lock.Unlock()
	var errs []error
	for _, annotator := range instances {
		if completer, ok := annotator.(types.CollectionProcessCompleter); ok {
			if err := completer.CollectionProcessComplete(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Destroy destroys the idle instances; busy ones are destroyed when they are given back
func (e *PrimitiveEngine) Destroy() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	for _, annotator := range e.idle {
		annotator.Destroy()
	}
	e.idle = nil
}

type emptyCasIterator struct {
}

func (emptyCasIterator) HasNext() (bool, error) {
	return false, nil
}

func (emptyCasIterator) Next() (types.CAS, error) {
	return nil, types.ErrNoMoreCas
}

func (emptyCasIterator) Release() {
}

// multiplierIterator pulls the outputs of one Process call from the
// multiplier instance it holds. The instance goes back to the engine once
// the outputs are exhausted, on a failure, or on Release.
type multiplierIterator struct {
	engine     *PrimitiveEngine
	multiplier types.CasMultiplier
	released   bool
	done       bool
}

func (it *multiplierIterator) HasNext() (bool, error) {
	if it.released {
		return false, types.ErrIteratorReleased
	}
	if it.done {
		return false, nil
	}
	ok, err := it.multiplier.HasNext()
	if err != nil || !ok {
		it.finish()
	}
	return ok, err
}

func (it *multiplierIterator) Next() (types.CAS, error) {
	if it.released {
		return nil, types.ErrIteratorReleased
	}
	if it.done {
		return nil, types.ErrNoMoreCas
	}
	out, err := it.multiplier.Next()
	if err != nil {
		it.finish()
		return nil, err
	}
	produced, ok := types.CasOf(out)
	if !ok {
		out.Release()
		it.finish()
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedOutput, out)
	}
	return produced, nil
}

// Release drains the outputs the multiplier still holds and releases them
func (it *multiplierIterator) Release() {
	if it.released {
		return
	}
	it.released = true
	it.finish()
}

// finish hands the drained instance back, once
func (it *multiplierIterator) finish() {
	if it.done {
		return
	}
	it.done = true
	drain(it.multiplier)
	it.engine.release(it.multiplier)
}

func drain(multiplier types.CasMultiplier) {
	for {
		ok, err := multiplier.HasNext()
		if err != nil || !ok {
			return
		}
		out, err := multiplier.Next()
		if err != nil {
			return
		}
		out.Release()
	}
}
