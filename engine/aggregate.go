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
	"github.com/rulego/casflow/descriptor"
	"github.com/rulego/casflow/resolver"
)

// DefaultFlowControllerKey key of the flow controller when the aggregate declares none
const DefaultFlowControllerKey = "_FlowController"

// default flow controller implementations, chosen by the flow constraints type
const (
	fixedFlowType              = "fixedFlow"
	capabilityLanguageFlowType = "capabilityLanguageFlow"
)

// NewConfig creates a Config with the engine defaults: the default component
// registry, primitive and aggregate factories, an unbounded CAS pool and a
// resource manager reading descriptors relative to the working directory.
func NewConfig(opts ...types.Option) types.Config {
	config := types.NewConfig(opts...)
	if config.ComponentsRegistry == nil {
		config.ComponentsRegistry = Registry
	}
	if config.Factories == nil {
		config.Factories = DefaultFactories()
	}
	if config.CasPool == nil {
		config.CasPool = cas.NewPool(0)
	}
	if config.ResourceManager == nil {
		config.ResourceManager = descriptor.NewFileResourceManager(".")
	}
	return config
}

// AggregateEngine runs an aggregate specifier: it owns the delegates, the
// flow controller and the ASB routing CASes between them. Nested aggregates
// are AggregateEngines too, built by the AggregateFactory.
//
// AggregateEngine 聚合引擎
type AggregateEngine struct {
	name     string
	spec     *types.AggregateSpecifier
	metadata *types.ComponentMetadata
	config   types.Config
	// factories builds delegates added later
	factories types.FactoryRegistry
	// parentMappings mappings of this aggregate inside its parent, nil at top level
	parentMappings map[string]string
	delegates      *DelegateRegistry
	flowController *FlowControllerContainer
	asb            *ASB
	resultSpec     *types.ResultSpecification
	// lock serializes membership changes
	lock sync.Mutex
}

var _ types.AnalysisEngine = (*AggregateEngine)(nil)

// NewAggregateEngine resolves the imports of spec, validates it and builds
// the engine tree.
func NewAggregateEngine(spec *types.AggregateSpecifier, opts ...types.Option) (*AggregateEngine, error) {
	config := NewConfig(opts...)
	return newAggregateEngine(spec, types.FactoryContext{Key: spec.Name, Config: config, Factories: config.Factories})
}

func newAggregateEngine(spec *types.AggregateSpecifier, ctx types.FactoryContext) (*AggregateEngine, error) {
	config := ctx.Config
	factories := ctx.Factories
	if factories == nil {
		factories = config.Factories
	}
	if factories == nil {
		factories = DefaultFactories()
	}
	if _, err := resolver.New(config.ResourceManager, config.Logger).Resolve(spec); err != nil {
		return nil, err
	}
	if err := resolver.ValidateKeys(spec); err != nil {
		return nil, err
	}
	if err := resolver.ValidateSofaMappings(spec); err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = ctx.Key
	}
	metadata := spec.Metadata().Copy()
	metadata.Name = name
	e := &AggregateEngine{
		name:           name,
		spec:           spec,
		metadata:       metadata,
		config:         config,
		factories:      factories,
		parentMappings: ctx.SofaMappings,
		delegates:      NewDelegateRegistry(),
	}
	for _, key := range sortedKeys(spec.Delegates) {
		engine, err := e.produce(key, spec.Delegates[key].Specifier)
		if err == nil {
			err = e.delegates.Add(key, engine)
		}
		if err != nil {
			e.Destroy()
			return nil, err
		}
	}
	fcKey, fcSpec, err := flowControllerOf(spec)
	if err != nil {
		e.Destroy()
		return nil, err
	}
	fcCtx := &flowControllerContext{
		componentContext: componentContext{key: fcKey, config: config, metadata: &types.ComponentMetadata{Name: fcKey}},
		aggregate:        metadata,
		delegates:        e.delegates,
		constraints:      spec.FlowConstraints,
	}
	fc, err := NewFlowControllerContainer(fcKey, fcSpec, fcCtx, ctx.SofaMappings)
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("aggregate %s: %w", name, err)
	}
	e.flowController = fc
	e.asb = newASB(name, e.delegates, fc, metadata.OperationalProperties.OutputsNewCases, config)
	return e, nil
}

// flowControllerOf returns the declared flow controller, or the default one
// for the flow constraints type
func flowControllerOf(spec *types.AggregateSpecifier) (string, *types.FlowControllerSpecifier, error) {
	decl := spec.FlowController
	if decl == nil {
		implementation := fixedFlowType
		if spec.FlowConstraints != nil && spec.FlowConstraints.Type == types.FlowConstraintsCapabilityLanguage {
			implementation = capabilityLanguageFlowType
		}
		return DefaultFlowControllerKey, &types.FlowControllerSpecifier{Implementation: implementation}, nil
	}
	key := decl.Key
	if key == "" {
		key = DefaultFlowControllerKey
	}
	if decl.Specifier == nil {
		return "", nil, fmt.Errorf("%w: flow controller %s of %s has no specifier", types.ErrFlowControllerNotFound, key, spec.Name)
	}
	return key, decl.Specifier, nil
}

func (e *AggregateEngine) produce(key string, spec types.ComponentSpecifier) (types.AnalysisEngine, error) {
	ctx := types.FactoryContext{
		Key:          key,
		Config:       e.config,
		SofaMappings: composeMappings(resolver.ComponentSofaMappings(e.spec, key), e.parentMappings),
		Factories:    e.factories,
	}
	engine, err := e.factories.Produce(spec, ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s, delegate %s: %w", e.name, key, err)
	}
	return engine, nil
}

// Name aggregate name, the delegate key for unnamed nested aggregates
func (e *AggregateEngine) Name() string {
	return e.name
}

// Specifier the resolved specifier the engine was built from
func (e *AggregateEngine) Specifier() *types.AggregateSpecifier {
	return e.spec
}

// Config engine configuration
func (e *AggregateEngine) Config() types.Config {
	return e.config
}

// Delegates the live delegate registry
func (e *AggregateEngine) Delegates() *DelegateRegistry {
	return e.delegates
}

// FlowController the wrapped flow controller
func (e *AggregateEngine) FlowController() *FlowControllerContainer {
	return e.flowController
}

func (e *AggregateEngine) Metadata() *types.ComponentMetadata {
	return e.metadata
}

// NewCas returns an empty CAS from the configured pool
func (e *AggregateEngine) NewCas() (types.CAS, error) {
	return e.config.CasPool.EmptyCas()
}

// Process starts routing in through the aggregate. The returned iterator
// yields the CASes the aggregate outputs; processing advances as it is
// consumed and is abandoned by Release. in is never yielded and remains
// owned by the caller. An iterator that is neither exhausted nor released
// stays counted in EngineMetrics.Current.
func (e *AggregateEngine) Process(in types.CAS) (types.CasIterator, error) {
	return e.asb.Process(in)
}

// ProcessAndOutputNewCASes runs the aggregate as the delegate of an enclosing aggregate
func (e *AggregateEngine) ProcessAndOutputNewCASes(in types.CAS) (types.CasIterator, error) {
	iter, err := e.asb.Process(in)
	if err != nil {
		return nil, err
	}
	return iter, nil
}

// ProcessAll processes in and collects every output CAS. The caller owns the
// outputs; on failure the outputs collected so far are released.
func (e *AggregateEngine) ProcessAll(in types.CAS) ([]types.CAS, error) {
	iter, err := e.Process(in)
	if err != nil {
		return nil, err
	}
	var outputs []types.CAS
	for {
		ok, err := iter.HasNext()
		if err != nil {
			for _, out := range outputs {
				out.Release()
			}
			return nil, err
		}
		if !ok {
			return outputs, nil
		}
		out, err := iter.Next()
		if err != nil {
			for _, out := range outputs {
				out.Release()
			}
			return nil, err
		}
		outputs = append(outputs, out)
	}
}

// ProcessWithResultSpecification runs the aggregate as a delegate. The nested
// flow controller computes the specifications of its own delegates, so rs is
// not forwarded.
func (e *AggregateEngine) ProcessWithResultSpecification(in types.CAS, _ *types.ResultSpecification) (types.CasIterator, error) {
	return e.ProcessAndOutputNewCASes(in)
}

// SetResultSpecification records the result specification requested from the
// aggregate. Delegates receive the partial specifications of their flow steps.
func (e *AggregateEngine) SetResultSpecification(rs *types.ResultSpecification) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.resultSpec = rs
}

// ResultSpecification the last result specification set, may be nil
func (e *AggregateEngine) ResultSpecification() *types.ResultSpecification {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.resultSpec
}

// CollectionProcessComplete notifies every delegate, then the flow controller
func (e *AggregateEngine) CollectionProcessComplete() error {
	var errs []error
	e.delegates.Range(func(key string, engine types.AnalysisEngine) bool {
		if err := engine.CollectionProcessComplete(); err != nil {
			errs = append(errs, fmt.Errorf("delegate %s: %w", key, err))
		}
		return true
	})
	if e.flowController != nil {
		if err := e.flowController.CollectionProcessComplete(); err != nil {
			errs = append(errs, fmt.Errorf("flow controller %s: %w", e.flowController.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Destroy destroys the flow controller and every delegate
func (e *AggregateEngine) Destroy() {
	if e.flowController != nil {
		e.flowController.Destroy()
	}
	for _, engine := range e.delegates.Remove(e.delegates.Keys()...) {
		engine.Destroy()
	}
}

// AddDelegate adds a delegate at run time. The flow controller is notified
// once the delegate is built; CASes already in flight keep their flows.
func (e *AggregateEngine) AddDelegate(key string, entry *types.Delegate) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, ok := e.spec.Delegates[key]; ok || key == e.flowController.Key() {
		return fmt.Errorf("%w: %s in %s", types.ErrDuplicateKey, key, e.name)
	}
	if e.spec.Delegates == nil {
		e.spec.Delegates = make(map[string]*types.Delegate)
	}
	e.spec.Delegates[key] = entry
	rollback := func(err error) error {
		delete(e.spec.Delegates, key)
		return err
	}
	if _, err := resolver.New(e.config.ResourceManager, e.config.Logger).Resolve(e.spec); err != nil {
		return rollback(err)
	}
	if err := resolver.ValidateSofaMappings(e.spec); err != nil {
		return rollback(err)
	}
	engine, err := e.produce(key, entry.Specifier)
	if err != nil {
		return rollback(err)
	}
	if err := e.delegates.Add(key, engine); err != nil {
		engine.Destroy()
		return rollback(err)
	}
	if err := e.flowController.AddAnalysisEngines([]string{key}); err != nil {
		e.delegates.Remove(key)
		engine.Destroy()
		return rollback(err)
	}
	return nil
}

// RemoveDelegates removes delegates at run time. The flow controller is
// notified first; CASes already in flight keep their flows.
func (e *AggregateEngine) RemoveDelegates(keys ...string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, key := range keys {
		if _, ok := e.delegates.Get(key); !ok {
			return fmt.Errorf("%w: %s in %s", types.ErrUndefinedKey, key, e.name)
		}
	}
	if err := e.flowController.RemoveAnalysisEngines(keys); err != nil {
		return err
	}
	for _, engine := range e.delegates.Remove(keys...) {
		engine.Destroy()
	}
	removed := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		removed[key] = struct{}{}
		delete(e.spec.Delegates, key)
	}
	var mappings []types.SofaMapping
	for _, m := range e.spec.SofaMappings {
		if _, ok := removed[m.ComponentKey]; !ok {
			mappings = append(mappings, m)
		}
	}
	e.spec.SofaMappings = mappings
	if fc := e.spec.FlowConstraints; fc != nil {
		var order []string
		for _, key := range fc.Order {
			if _, ok := removed[key]; !ok {
				order = append(order, key)
			}
		}
		fc.Order = order
	}
	_, err := resolver.New(e.config.ResourceManager, e.config.Logger).Resolve(e.spec)
	return err
}
