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

package test

import (
	"errors"
	"fmt"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/maps"
)

// VisitedType annotation added by Recorder, its `key` feature names the delegate
const VisitedType = "Visited"

// ErrInjected failure returned by the scripted components
var ErrInjected = errors.New("injected failure")

// Registry scripted components for engine and endpoint tests
var Registry = &types.SafeComponentSlice{}

func init() {
	Registry.Add(&Recorder{}, &CountMultiplier{}, &FailingAnnotator{})
}

// Visits returns the delegate keys recorded on cas, in invocation order
func Visits(cas types.CAS) []string {
	var keys []string
	for _, a := range cas.Annotations(VisitedType) {
		keys = append(keys, fmt.Sprint(a.Features["key"]))
	}
	return keys
}

// Recorder adds a Visited annotation naming its delegate key
type Recorder struct {
	key        string
	ResultSpec *types.ResultSpecification
}

func (x *Recorder) Type() string {
	return "recorder"
}

func (x *Recorder) New() types.Component {
	return &Recorder{}
}

func (x *Recorder) Init(ctx types.ComponentContext, _ types.Configuration) error {
	x.key = ctx.Key()
	return nil
}

func (x *Recorder) SetResultSpecification(rs *types.ResultSpecification) {
	x.ResultSpec = rs
}

func (x *Recorder) Process(abstractCas types.AbstractCas) error {
	cas, ok := types.CasOf(abstractCas)
	if !ok {
		return fmt.Errorf("unexpected CAS %T", abstractCas)
	}
	cas.AddAnnotation(types.Annotation{Type: VisitedType, Features: map[string]interface{}{"key": x.key}})
	return nil
}

func (x *Recorder) Destroy() {
}

// CountMultiplierConfiguration 测试用CAS复制器配置
type CountMultiplierConfiguration struct {
	// Count number of CASes produced per input
	Count int
	// FailProcess Process fails
	FailProcess bool
	// FailAt Next fails for the CAS of that index, -1 never
	FailAt int
}

// CountMultiplier produces Count CASes whose text is `<input text>#<i>`
type CountMultiplier struct {
	Config  CountMultiplierConfiguration
	ctx     types.ComponentContext
	text    string
	next    int
	pending int
}

func (x *CountMultiplier) Type() string {
	return "countMultiplier"
}

func (x *CountMultiplier) New() types.Component {
	return &CountMultiplier{Config: CountMultiplierConfiguration{FailAt: -1}}
}

func (x *CountMultiplier) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	x.ctx = ctx
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *CountMultiplier) Process(abstractCas types.AbstractCas) error {
	if x.Config.FailProcess {
		return ErrInjected
	}
	cas, ok := types.CasOf(abstractCas)
	if !ok {
		return fmt.Errorf("unexpected CAS %T", abstractCas)
	}
	x.text = cas.DocumentText()
	x.next = 0
	x.pending = x.Config.Count
	return nil
}

func (x *CountMultiplier) HasNext() (bool, error) {
	if x.next == x.Config.FailAt && x.pending > 0 {
		x.pending = 0
		return false, fmt.Errorf("%w at %d", ErrInjected, x.next)
	}
	return x.pending > 0, nil
}

func (x *CountMultiplier) Next() (types.AbstractCas, error) {
	out, err := x.ctx.EmptyCas()
	if err != nil {
		return nil, err
	}
	out.SetDocumentText(fmt.Sprintf("%s#%d", x.text, x.next))
	x.next++
	x.pending--
	return out, nil
}

func (x *CountMultiplier) Destroy() {
}

// FailingAnnotator always fails
type FailingAnnotator struct {
}

func (x *FailingAnnotator) Type() string {
	return "failAnnotator"
}

func (x *FailingAnnotator) New() types.Component {
	return &FailingAnnotator{}
}

func (x *FailingAnnotator) Init(types.ComponentContext, types.Configuration) error {
	return nil
}

func (x *FailingAnnotator) Process(types.AbstractCas) error {
	return ErrInjected
}

func (x *FailingAnnotator) Destroy() {
}
