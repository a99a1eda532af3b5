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

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/api/types/metrics"
	"github.com/rulego/casflow/builtin/aspect"
)

// ASB routes CASes between the delegates of one aggregate as directed by the
// flows of its flow controller.
//
// ASB 聚合组件的路由总线：按照流程控制器给出的流程在委托组件之间传递CAS
type ASB struct {
	name            string
	delegates       *DelegateRegistry
	flowController  *FlowControllerContainer
	outputsNewCases bool
	logger          types.Logger
	metrics         *metrics.EngineMetrics
	before          []types.BeforeAspect
	after           []types.AfterAspect
}

func newASB(name string, delegates *DelegateRegistry, flowController *FlowControllerContainer, outputsNewCases bool, config types.Config) *ASB {
	aspects := append(types.AspectList(nil), config.Aspects...)
	if config.OnDebug != nil {
		aspects = append(aspects, aspect.NewDebug(config.OnDebug))
	}
	before, after := aspects.ComponentAspects()
	return &ASB{
		name:            name,
		delegates:       delegates,
		flowController:  flowController,
		outputsNewCases: outputsNewCases,
		logger:          types.NewLogger(config.Logger),
		metrics:         config.Metrics,
		before:          before,
		after:           after,
	}
}

// Process starts the traversal of in and returns an iterator over the CASes
// the aggregate outputs. The traversal advances only while the iterator is
// consumed; in itself is never returned by the iterator.
//
// The traversal counts as current in the metrics until the iterator is
// exhausted, fails or is released, so callers must do one of those.
func (a *ASB) Process(in types.CAS) (types.CasIterator, error) {
	if a.metrics != nil {
		a.metrics.IncrementTotal()
		a.metrics.IncrementCurrent()
	}
	flow, err := a.flowController.ComputeFlow(in)
	if err != nil {
		if a.metrics != nil {
			a.metrics.DecrementCurrent()
			a.metrics.IncrementFailed()
		}
		return nil, types.WrapProcessError(a.name, a.flowController.Key(), err)
	}
	return &aggregateCasIterator{
		asb:      a,
		inputCas: in,
		nextCas:  in,
		nextFlow: flow,
		active:   make(map[string]types.CAS),
	}, nil
}

func (a *ASB) invokeBefore(ctx types.InvocationContext, cas types.CAS) {
	for _, item := range a.before {
		if item.PointCut(ctx) {
			item.Before(ctx, cas)
		}
	}
}

func (a *ASB) invokeAfter(ctx types.InvocationContext, cas types.CAS, err error) {
	for _, item := range a.after {
		if item.PointCut(ctx) {
			item.After(ctx, cas, err)
		}
	}
}

// stackFrame is a CAS suspended while the CASes produced from it are routed
type stackFrame struct {
	casIterator      types.CasIterator
	originalCas      types.CAS
	originalCasFlow  *FlowContainer
	casMultiplierKey string
	// incompleteParallelStep keys of a parallel step not yet executed on originalCas
	incompleteParallelStep []string
}

// aggregateCasIterator drives one traversal. It is not safe for concurrent use.
type aggregateCasIterator struct {
	asb      *ASB
	inputCas types.CAS
	// nextCas and nextFlow hold the input CAS until routing starts
	nextCas  types.CAS
	nextFlow *FlowContainer
	// currentFlow flow of the CAS being routed
	currentFlow *FlowContainer
	stack       []*stackFrame
	// active CASes in circulation by id, the input CAS included
	active map[string]types.CAS
	// lookahead output found by HasNext and not yet returned by Next
	lookahead types.CAS
	done      bool
	released  bool
}

func (it *aggregateCasIterator) HasNext() (bool, error) {
	if it.released {
		return false, types.ErrIteratorReleased
	}
	if it.lookahead != nil {
		return true, nil
	}
	if it.done {
		return false, nil
	}
	out, err := it.processUntilNextOutputCas()
	if err != nil {
		it.abort()
		it.finish(err)
		return false, err
	}
	if out == nil {
		it.finish(nil)
		return false, nil
	}
	it.lookahead = out
	return true, nil
}

func (it *aggregateCasIterator) Next() (types.CAS, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrNoMoreCas
	}
	out := it.lookahead
	it.lookahead = nil
	return out, nil
}

// Release abandons the traversal: every flow still in circulation is aborted
// and every CAS created inside the aggregate is released.
func (it *aggregateCasIterator) Release() {
	if it.released {
		return
	}
	it.released = true
	if it.lookahead != nil {
		it.lookahead.Release()
		it.lookahead = nil
	}
	if !it.done {
		it.abort()
		it.finish(types.ErrIteratorReleased)
	}
}

func (it *aggregateCasIterator) finish(err error) {
	it.done = true
	if m := it.asb.metrics; m != nil {
		m.DecrementCurrent()
		if err != nil {
			m.IncrementFailed()
		} else {
			m.IncrementSuccess()
		}
	}
}

// abort unwinds the traversal after a failure or a Release
func (it *aggregateCasIterator) abort() {
	if it.nextFlow != nil {
		it.nextFlow.Aborted()
		it.nextCas, it.nextFlow = nil, nil
	}
	if it.currentFlow != nil {
		it.currentFlow.Aborted()
		it.currentFlow = nil
	}
	for i := len(it.stack) - 1; i >= 0; i-- {
		frame := it.stack[i]
		frame.originalCasFlow.Aborted()
		frame.casIterator.Release()
	}
	it.stack = nil
	inputId := it.inputCas.Id()
	for id, c := range it.active {
		if id != inputId {
			c.Release()
		}
	}
	it.active = make(map[string]types.CAS)
	it.inputCas.SetCurrentComponent(nil)
}

// processUntilNextOutputCas routes CASes until one leaves the aggregate as an
// output. It returns nil when the input CAS has finished.
func (it *aggregateCasIterator) processUntilNextOutputCas() (types.CAS, error) {
	for {
		var (
			cas      types.CAS
			flow     *FlowContainer
			parallel []string
		)
		if it.nextCas != nil {
			cas, flow = it.nextCas, it.nextFlow
			it.nextCas, it.nextFlow = nil, nil
		} else {
			var err error
			cas, flow, parallel, err = it.resume()
			if err != nil {
				return nil, err
			}
			if cas == nil {
				return nil, nil
			}
		}
		it.active[cas.Id()] = cas
		it.currentFlow = flow

		final, cas, err := it.route(cas, parallel)
		if err != nil {
			return nil, err
		}
		delete(it.active, cas.Id())
		it.currentFlow = nil

		if cas.Id() == it.inputCas.Id() {
			if final.ForceCasToBeDropped {
				return nil, types.WrapProcessError(it.asb.name, "", types.ErrIllegalDropCas)
			}
			return nil, nil
		}
		if it.asb.outputsNewCases && !final.ForceCasToBeDropped {
			return cas, nil
		}
		cas.Release()
		if m := it.asb.metrics; m != nil {
			m.IncrementDropped()
		}
	}
}

// resume takes the next output of the top stack frame, or resumes the CAS of
// the frame once its iterator is exhausted. It returns a nil CAS when the
// stack is empty.
func (it *aggregateCasIterator) resume() (types.CAS, *FlowContainer, []string, error) {
	for len(it.stack) > 0 {
		frame := it.stack[len(it.stack)-1]
		produced, err := nextOutput(frame.casIterator)
		if err == nil && produced != nil {
			it.active[produced.Id()] = produced
			flow, err := frame.originalCasFlow.NewCasProduced(produced, frame.casMultiplierKey)
			if err != nil {
				return nil, nil, nil, types.WrapProcessError(it.asb.name, frame.casMultiplierKey, err)
			}
			return produced, flow, nil, nil
		}
		if err != nil {
			if !frame.originalCasFlow.ContinueOnFailure(frame.casMultiplierKey, err) {
				return nil, nil, nil, types.WrapProcessError(it.asb.name, frame.casMultiplierKey, err)
			}
			it.asb.logger.Printf("aggregate %s: %s failed to produce a CAS, continuing: %v", it.asb.name, frame.casMultiplierKey, err)
		}
		it.stack = it.stack[:len(it.stack)-1]
		frame.casIterator.Release()
		frame.originalCas.SetCurrentComponent(nil)
		return frame.originalCas, frame.originalCasFlow, frame.incompleteParallelStep, nil
	}
	return nil, nil, nil, nil
}

// route executes steps until some CAS reaches its final step. A delegate that
// produces CASes suspends the current CAS and routing continues with the
// first produced CAS, which is then the one returned.
func (it *aggregateCasIterator) route(cas types.CAS, parallel []string) (types.FinalStep, types.CAS, error) {
	for {
		flow := it.currentFlow
		var step types.Step
		if parallel != nil {
			step = types.ParallelStep{Keys: parallel}
			parallel = nil
		} else {
			var err error
			step, err = flow.Next()
			if err != nil {
				return types.FinalStep{}, cas, types.WrapProcessError(it.asb.name, it.asb.flowController.Key(), err)
			}
		}
		var (
			keys       []string
			withResult *types.ResultSpecification
		)
		switch s := step.(type) {
		case types.FinalStep:
			return s, cas, nil
		case *types.FinalStep:
			return *s, cas, nil
		case types.SimpleStep:
			keys, withResult = []string{s.Key}, s.ResultSpec
		case *types.SimpleStep:
			keys, withResult = []string{s.Key}, s.ResultSpec
		case types.ParallelStep:
			keys = s.Keys
		case *types.ParallelStep:
			keys = s.Keys
		default:
			return types.FinalStep{}, cas, types.WrapProcessError(it.asb.name, "", fmt.Errorf("%w: %T", types.ErrUnsupportedStep, step))
		}
		for i, key := range keys {
			iter, produced, err := it.invoke(key, withResult, cas, flow)
			if err != nil {
				return types.FinalStep{}, cas, err
			}
			if produced == nil {
				continue
			}
			frame := &stackFrame{
				casIterator:      iter,
				originalCas:      cas,
				originalCasFlow:  flow,
				casMultiplierKey: key,
			}
			if i+1 < len(keys) {
				frame.incompleteParallelStep = append([]string(nil), keys[i+1:]...)
			}
			it.stack = append(it.stack, frame)
			it.currentFlow = nil
			newFlow, err := flow.NewCasProduced(produced, key)
			if err != nil {
				return types.FinalStep{}, cas, types.WrapProcessError(it.asb.name, key, err)
			}
			cas = produced
			it.currentFlow = newFlow
			break
		}
	}
}

// invoke runs one delegate on cas. It returns the delegate's output iterator
// and its first output when the delegate produced CASes, nils otherwise.
// A failure the flow chooses to continue on is logged and swallowed.
func (it *aggregateCasIterator) invoke(key string, rs *types.ResultSpecification, cas types.CAS, flow *FlowContainer) (types.CasIterator, types.CAS, error) {
	delegate, ok := it.asb.delegates.Get(key)
	if !ok {
		return nil, nil, types.WrapProcessError(it.asb.name, key, fmt.Errorf("%w: %s", types.ErrUnknownComponentKey, key))
	}
	ctx := types.InvocationContext{Aggregate: it.asb.name, Key: key, Metadata: delegate.Metadata()}
	it.asb.invokeBefore(ctx, cas)
	if m := it.asb.metrics; m != nil {
		m.IncrementInvocations()
	}
	var iter types.CasIterator
	var err error
	if rs != nil {
		iter, err = delegate.ProcessWithResultSpecification(cas, rs)
	} else {
		iter, err = delegate.ProcessAndOutputNewCASes(cas)
	}
	var produced types.CAS
	if err == nil {
		produced, err = nextOutput(iter)
	}
	it.asb.invokeAfter(ctx, cas, err)
	if produced != nil {
		it.active[produced.Id()] = produced
		return iter, produced, nil
	}
	if iter != nil {
		iter.Release()
	}
	cas.SetCurrentComponent(nil)
	if err != nil {
		if !flow.ContinueOnFailure(key, err) {
			return nil, nil, types.WrapProcessError(it.asb.name, key, err)
		}
		it.asb.logger.Printf("aggregate %s: %s failed, continuing: %v", it.asb.name, key, err)
	}
	return nil, nil, nil
}

func nextOutput(iter types.CasIterator) (types.CAS, error) {
	ok, err := iter.HasNext()
	if err != nil || !ok {
		return nil, err
	}
	return iter.Next()
}
