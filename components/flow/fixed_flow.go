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

package flow

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/maps"
)

// Actions taken on a CAS after it was passed to a CAS multiplier
const (
	// ActionContinue the CAS continues with the next component
	ActionContinue = "continue"
	// ActionStop the CAS finishes and leaves the aggregate
	ActionStop = "stop"
	// ActionDrop the CAS finishes, an internally created CAS is dropped
	ActionDrop = "drop"
	// ActionDropIfNewCasProduced like drop when the multiplier produced a CAS, like continue otherwise
	ActionDropIfNewCasProduced = "dropIfNewCasProduced"
)

func init() {
	Registry.Add(&FixedFlowController{})
}

// FixedFlowConfiguration 固定流程配置
type FixedFlowConfiguration struct {
	// ActionAfterCasMultiplier what happens to a CAS once a CAS multiplier processed it
	ActionAfterCasMultiplier string `default:"dropIfNewCasProduced" validate:"oneof=continue stop drop dropIfNewCasProduced"`
	// ContinueOnFailureKeys keys whose failures do not stop the CAS, `*` matches every key
	ContinueOnFailureKeys []string
	// Order overrides the order of the flow constraints
	Order []string
}

// sequence is an immutable snapshot of the delegate order
type sequence struct {
	keys        []string
	multipliers map[string]bool
}

func (s *sequence) indexOf(key string) int {
	return indexOf(s.keys, key)
}

// FixedFlowController routes every CAS through the delegates in a fixed order.
// The order comes from the configuration, the flow constraints of the
// aggregate or, when neither declares one, the sorted delegate keys.
//
// Readers take the current sequence without locking; Add/Remove publish a new one.
//
// FixedFlowController 按固定顺序路由CAS
type FixedFlowController struct {
	ControllerBase
	Config  FixedFlowConfiguration
	seq     atomic.Pointer[sequence]
	lock    sync.Mutex
	failure failurePolicy
}

func (x *FixedFlowController) Type() string {
	return "fixedFlow"
}

func (x *FixedFlowController) New() types.Component {
	return &FixedFlowController{}
}

func (x *FixedFlowController) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	if err := x.InitContext(ctx); err != nil {
		return err
	}
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	order, err := x.DelegateOrder(x.Config.Order)
	if err != nil {
		return err
	}
	x.failure = newFailurePolicy(x.Config.ContinueOnFailureKeys)
	x.publish(order)
	return nil
}

// publish stores a new snapshot of order
func (x *FixedFlowController) publish(order []string) {
	delegates := x.Context.DelegateMetadata()
	s := &sequence{keys: order, multipliers: make(map[string]bool, len(order))}
	for _, key := range order {
		s.multipliers[key] = delegates[key].IsCasMultiplier()
	}
	x.seq.Store(s)
}

// Sequence returns the current order
func (x *FixedFlowController) Sequence() []string {
	return append([]string(nil), x.seq.Load().keys...)
}

func (x *FixedFlowController) ComputeFlow(types.AbstractCas) (types.Flow, error) {
	return &FixedFlow{
		controller: x,
		seq:        x.seq.Load(),
	}, nil
}

// AddAnalysisEngines appends the new keys at the end of the sequence
func (x *FixedFlowController) AddAnalysisEngines(keys []string) error {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.publish(withKeys(x.seq.Load().keys, keys))
	return nil
}

// RemoveAnalysisEngines removes the keys from the sequence
func (x *FixedFlowController) RemoveAnalysisEngines(keys []string) error {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.publish(withoutKeys(x.seq.Load().keys, keys))
	return nil
}

// FixedFlow walks one sequence snapshot for one CAS
type FixedFlow struct {
	FlowBase
	controller *FixedFlowController
	seq        *sequence
	current    int

	// internallyCreated the CAS was produced inside the aggregate
	internallyCreated        bool
	wasPassedToCasMultiplier bool
	casMultiplierProducedCas bool
}

func (f *FixedFlow) Next() (types.Step, error) {
	if f.wasPassedToCasMultiplier {
		switch f.controller.Config.ActionAfterCasMultiplier {
		case ActionStop:
			return types.FinalStep{}, nil
		case ActionDrop:
			return types.FinalStep{ForceCasToBeDropped: f.internallyCreated}, nil
		case ActionDropIfNewCasProduced:
			if f.casMultiplierProducedCas {
				return types.FinalStep{ForceCasToBeDropped: f.internallyCreated}, nil
			}
		}
		f.wasPassedToCasMultiplier = false
		f.casMultiplierProducedCas = false
	}
	if f.current >= len(f.seq.keys) {
		return types.FinalStep{}, nil
	}
	key := f.seq.keys[f.current]
	f.current++
	if f.seq.multipliers[key] {
		f.wasPassedToCasMultiplier = true
	}
	return types.SimpleStep{Key: key}, nil
}

// NewCasProduced starts the new CAS right after the producing component
func (f *FixedFlow) NewCasProduced(_ types.AbstractCas, producedBy string) (types.Flow, error) {
	f.casMultiplierProducedCas = true
	i := f.seq.indexOf(producedBy)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s is not in the fixed sequence", types.ErrUnknownComponentKey, producedBy)
	}
	return &FixedFlow{
		controller:        f.controller,
		seq:               f.seq,
		current:           i + 1,
		internallyCreated: true,
	}, nil
}

func (f *FixedFlow) ContinueOnFailure(failedKey string, _ error) bool {
	return f.controller.failure.continueOnFailure(failedKey)
}
