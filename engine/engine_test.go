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
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/api/types/metrics"
	"github.com/rulego/casflow/cas"
	"github.com/rulego/casflow/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stepsController replays steps for input CASes and childSteps for produced
// CASes. CASes produced from produced CASes get grandChildSteps.
type stepsController struct {
	name            string
	steps           []types.Step
	childSteps      []types.Step
	grandChildSteps []types.Step
	aborted         *int32
}

func newStepsController(name string, steps []types.Step, childSteps ...types.Step) *stepsController {
	return &stepsController{name: name, steps: steps, childSteps: childSteps, aborted: new(int32)}
}

func (x *stepsController) Type() string {
	return x.name
}

func (x *stepsController) New() types.Component {
	return &stepsController{name: x.name, steps: x.steps, childSteps: x.childSteps, grandChildSteps: x.grandChildSteps, aborted: x.aborted}
}

func (x *stepsController) Init(types.ComponentContext, types.Configuration) error {
	return nil
}

func (x *stepsController) ComputeFlow(types.AbstractCas) (types.Flow, error) {
	return &stepsFlow{controller: x, steps: x.steps}, nil
}

func (x *stepsController) AddAnalysisEngines([]string) error {
	return nil
}

func (x *stepsController) RemoveAnalysisEngines([]string) error {
	return nil
}

func (x *stepsController) CollectionProcessComplete() error {
	return nil
}

func (x *stepsController) RequiredCasInterface() string {
	return types.CasInterfaceCAS
}

func (x *stepsController) Destroy() {
}

func (x *stepsController) Aborted() int {
	return int(atomic.LoadInt32(x.aborted))
}

type stepsFlow struct {
	controller *stepsController
	steps      []types.Step
	index      int
	depth      int
}

func (f *stepsFlow) Next() (types.Step, error) {
	if f.index >= len(f.steps) {
		return types.FinalStep{}, nil
	}
	step := f.steps[f.index]
	f.index++
	return step, nil
}

func (f *stepsFlow) NewCasProduced(types.AbstractCas, string) (types.Flow, error) {
	steps := f.controller.childSteps
	if f.depth > 0 {
		steps = f.controller.grandChildSteps
	}
	return &stepsFlow{controller: f.controller, steps: steps, depth: f.depth + 1}, nil
}

func (f *stepsFlow) ContinueOnFailure(string, error) bool {
	return false
}

func (f *stepsFlow) Aborted() {
	atomic.AddInt32(f.controller.aborted, 1)
}

// testRegistry holds the built-in components, the test fixtures and extra
func testRegistry(t *testing.T, extra ...types.Component) *DefaultComponentRegistry {
	r := new(DefaultComponentRegistry)
	for _, c := range Registry.GetComponents() {
		require.NoError(t, r.Register(c))
	}
	for _, c := range test.Registry.Components() {
		require.NoError(t, r.Register(c))
	}
	for _, c := range extra {
		require.NoError(t, r.Register(c))
	}
	return r
}

func primitive(implementation string, configuration types.Configuration) *types.Delegate {
	return &types.Delegate{Specifier: &types.PrimitiveSpecifier{Implementation: implementation, Configuration: configuration}}
}

func recorders(keys ...string) map[string]*types.Delegate {
	delegates := make(map[string]*types.Delegate, len(keys))
	for _, key := range keys {
		delegates[key] = primitive("recorder", nil)
	}
	return delegates
}

func fixedAggregate(name string, delegates map[string]*types.Delegate, order ...string) *types.AggregateSpecifier {
	return &types.AggregateSpecifier{
		ComponentMetadata: types.ComponentMetadata{Name: name},
		Delegates:         delegates,
		FlowConstraints:   &types.FlowConstraints{Type: types.FlowConstraintsFixed, Order: order},
	}
}

func withFlowController(spec *types.AggregateSpecifier, implementation string, configuration types.Configuration) *types.AggregateSpecifier {
	spec.FlowController = &types.FlowControllerDeclaration{
		Key:       "fc",
		Specifier: &types.FlowControllerSpecifier{Implementation: implementation, Configuration: configuration},
	}
	return spec
}

func outputting(spec *types.AggregateSpecifier) *types.AggregateSpecifier {
	spec.OperationalProperties.OutputsNewCases = true
	return spec
}

func newEngine(t *testing.T, spec *types.AggregateSpecifier, pool *cas.Pool, opts ...types.Option) *AggregateEngine {
	opts = append([]types.Option{
		types.WithLogger(types.DiscardLogger{}),
		types.WithCasPool(pool),
		types.WithComponentsRegistry(testRegistry(t)),
	}, opts...)
	e, err := NewAggregateEngine(spec, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Destroy)
	return e
}

func texts(outputs []types.CAS) []string {
	var result []string
	for _, out := range outputs {
		result = append(result, out.DocumentText())
	}
	return result
}

func releaseAll(outputs []types.CAS) {
	for _, out := range outputs {
		out.Release()
	}
}

func TestFixedOrder(t *testing.T) {
	pool := cas.NewPool(0)
	e := newEngine(t, fixedAggregate("pipeline", recorders("a", "b", "c"), "c", "a", "b"), pool)
	in := test.NewDocument("some text", "en")

	outputs, err := e.ProcessAll(in)
	require.NoError(t, err)
	assert.Empty(t, outputs)
	assert.Equal(t, []string{"c", "a", "b"}, test.Visits(in))
	assert.Nil(t, in.CurrentComponent())
	assert.False(t, in.Released())

	// a second document runs through the same engine
	again := test.NewDocument("more", "en")
	_, err = e.ProcessAll(again)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, test.Visits(again))
}

func TestCasMultiplierActions(t *testing.T) {
	tests := []struct {
		action        string
		outputs       []string
		inputVisits   []string
		outputsNewCas bool
	}{
		{action: "continue", outputs: []string{"doc#0", "doc#1", "doc#2"}, inputVisits: []string{"r"}, outputsNewCas: true},
		{action: "dropIfNewCasProduced", outputs: []string{"doc#0", "doc#1", "doc#2"}, outputsNewCas: true},
		{action: "drop", outputs: []string{"doc#0", "doc#1", "doc#2"}, outputsNewCas: true},
		{action: "stop", outputs: []string{"doc#0", "doc#1", "doc#2"}, outputsNewCas: true},
		{action: "continue", inputVisits: []string{"r"}},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			pool := cas.NewPool(0)
			m := metrics.NewEngineMetrics()
			spec := withFlowController(fixedAggregate("split", map[string]*types.Delegate{
				"m": primitive("countMultiplier", types.Configuration{"count": 3}),
				"r": primitive("recorder", nil),
			}, "m", "r"), "fixedFlow", types.Configuration{"actionAfterCasMultiplier": tt.action})
			spec.OperationalProperties.OutputsNewCases = tt.outputsNewCas
			e := newEngine(t, spec, pool, types.WithMetrics(m))

			in := test.NewDocument("doc", "")
			outputs, err := e.ProcessAll(in)
			require.NoError(t, err)
			assert.Equal(t, tt.outputs, texts(outputs))
			assert.Equal(t, tt.inputVisits, test.Visits(in))
			for _, out := range outputs {
				assert.Equal(t, []string{"r"}, test.Visits(out))
			}
			assert.Equal(t, len(outputs), pool.InUse())
			assert.Equal(t, int64(3-len(outputs)), m.Get().Dropped)
			releaseAll(outputs)
			assert.Equal(t, 0, pool.InUse())
		})
	}
}

func TestStopsOnFailure(t *testing.T) {
	e := newEngine(t, fixedAggregate("failing", map[string]*types.Delegate{
		"f": primitive("failAnnotator", nil),
		"r": primitive("recorder", nil),
	}, "f", "r"), cas.NewPool(0))
	in := test.NewDocument("doc", "")

	_, err := e.ProcessAll(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, test.ErrInjected))
	var pe *types.ProcessError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "failing", pe.Aggregate)
	assert.Equal(t, "f", pe.ComponentKey)
	assert.Empty(t, test.Visits(in))
	assert.Nil(t, in.CurrentComponent())
}

func TestContinueOnFailure(t *testing.T) {
	spec := withFlowController(fixedAggregate("failing", map[string]*types.Delegate{
		"f": primitive("failAnnotator", nil),
		"r": primitive("recorder", nil),
	}, "f", "r"), "fixedFlow", types.Configuration{"continueOnFailureKeys": []interface{}{"f"}})
	e := newEngine(t, spec, cas.NewPool(0))
	in := test.NewDocument("doc", "")

	_, err := e.ProcessAll(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"r"}, test.Visits(in))
}

func TestMultiplierFailure(t *testing.T) {
	spec := func(continueOn ...interface{}) *types.AggregateSpecifier {
		return outputting(withFlowController(fixedAggregate("split", map[string]*types.Delegate{
			"m": primitive("countMultiplier", types.Configuration{"count": 3, "failAt": 1}),
			"r": primitive("recorder", nil),
		}, "m", "r"), "fixedFlow", types.Configuration{"continueOnFailureKeys": continueOn}))
	}

	pool := cas.NewPool(0)
	e := newEngine(t, spec(), pool)
	iter, err := e.Process(test.NewDocument("doc", ""))
	require.NoError(t, err)
	first, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, "doc#0", first.DocumentText())
	_, err = iter.HasNext()
	require.Error(t, err)
	assert.True(t, errors.Is(err, test.ErrInjected))
	var pe *types.ProcessError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "m", pe.ComponentKey)
	assert.Equal(t, 1, pool.InUse())
	first.Release()
	assert.Equal(t, 0, pool.InUse())

	// the input resumes after the multiplier failed
	pool = cas.NewPool(0)
	e = newEngine(t, spec("m"), pool)
	outputs, err := e.ProcessAll(test.NewDocument("doc", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc#0"}, texts(outputs))
	releaseAll(outputs)
}

func TestReleaseAbandonsTraversal(t *testing.T) {
	controller := newStepsController("steps",
		[]types.Step{types.SimpleStep{Key: "m"}, types.SimpleStep{Key: "r"}},
		types.SimpleStep{Key: "r"})
	pool := cas.NewPool(0)
	spec := outputting(withFlowController(fixedAggregate("split", map[string]*types.Delegate{
		"m": primitive("countMultiplier", types.Configuration{"count": 3}),
		"r": primitive("recorder", nil),
	}), "steps", nil))
	e := newEngine(t, spec, pool, types.WithComponentsRegistry(testRegistry(t, controller)))
	in := test.NewDocument("doc", "")

	iter, err := e.Process(in)
	require.NoError(t, err)
	first, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, "doc#0", first.DocumentText())

	iter.Release()
	iter.Release()
	assert.Equal(t, 1, controller.Aborted())
	// only the CAS handed out is still in use
	assert.Equal(t, 1, pool.InUse())
	assert.False(t, in.Released())
	_, err = iter.HasNext()
	assert.True(t, errors.Is(err, types.ErrIteratorReleased))
	_, err = iter.Next()
	assert.True(t, errors.Is(err, types.ErrIteratorReleased))

	first.Release()
	assert.Equal(t, 0, pool.InUse())
}

func TestReleaseBeforeStart(t *testing.T) {
	controller := newStepsController("steps", []types.Step{types.SimpleStep{Key: "r"}})
	m := metrics.NewEngineMetrics()
	e := newEngine(t, withFlowController(fixedAggregate("a", recorders("r")), "steps", nil),
		cas.NewPool(0), types.WithComponentsRegistry(testRegistry(t, controller)), types.WithMetrics(m))
	in := test.NewDocument("doc", "")
	iter, err := e.Process(in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Get().Current)
	iter.Release()
	assert.Equal(t, 1, controller.Aborted())
	assert.Empty(t, test.Visits(in))
	assert.Equal(t, int64(0), m.Get().Current)
	assert.Equal(t, int64(1), m.Get().Failed)
}

func TestReleaseAbandonsNestedTraversal(t *testing.T) {
	controller := newStepsController("steps",
		[]types.Step{types.SimpleStep{Key: "m1"}, types.SimpleStep{Key: "r"}},
		types.SimpleStep{Key: "m2"}, types.SimpleStep{Key: "r"})
	controller.grandChildSteps = []types.Step{types.SimpleStep{Key: "r"}}
	pool := cas.NewPool(0)
	m := metrics.NewEngineMetrics()
	spec := outputting(withFlowController(fixedAggregate("split", map[string]*types.Delegate{
		"m1": primitive("countMultiplier", types.Configuration{"count": 2}),
		"m2": primitive("countMultiplier", types.Configuration{"count": 2}),
		"r":  primitive("recorder", nil),
	}), "steps", nil))
	e := newEngine(t, spec, pool, types.WithComponentsRegistry(testRegistry(t, controller)), types.WithMetrics(m))
	in := test.NewDocument("doc", "")

	iter, err := e.Process(in)
	require.NoError(t, err)
	first, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, "doc#0#0", first.DocumentText())
	assert.Equal(t, []string{"r"}, test.Visits(first))
	// doc and doc#0 are suspended on the stack, first holds no frame
	assert.Equal(t, 0, controller.Aborted())

	iter.Release()
	assert.Equal(t, 2, controller.Aborted())
	assert.Equal(t, 1, pool.InUse())
	assert.False(t, in.Released())
	assert.Equal(t, int64(0), m.Get().Current)

	first.Release()
	assert.Equal(t, 0, pool.InUse())

	// the multiplier instances went back to their engines
	again, err := e.ProcessAll(test.NewDocument("x", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"x#0#0", "x#0#1", "x#0", "x#1#0", "x#1#1", "x#1"}, texts(again))
	releaseAll(again)
	assert.Equal(t, 0, pool.InUse())
}

func TestInterleavedTraversals(t *testing.T) {
	pool := cas.NewPool(0)
	e := newEngine(t, outputting(fixedAggregate("split", map[string]*types.Delegate{
		"seg": primitive("segmenter", nil),
		"r":   primitive("recorder", nil),
	}, "seg", "r")), pool)

	it1, err := e.Process(test.NewDocument("a1\na2\na3", ""))
	require.NoError(t, err)
	it2, err := e.Process(test.NewDocument("b1\nb2\nb3", ""))
	require.NoError(t, err)

	var first, second []types.CAS
	out, err := it1.Next()
	require.NoError(t, err)
	first = append(first, out)
	out, err = it2.Next()
	require.NoError(t, err)
	second = append(second, out)

	for _, traversal := range []struct {
		iter    types.CasIterator
		outputs *[]types.CAS
	}{{it1, &first}, {it2, &second}} {
		for {
			ok, err := traversal.iter.HasNext()
			require.NoError(t, err)
			if !ok {
				break
			}
			out, err := traversal.iter.Next()
			require.NoError(t, err)
			*traversal.outputs = append(*traversal.outputs, out)
		}
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, texts(first))
	assert.Equal(t, []string{"b1", "b2", "b3"}, texts(second))
	for _, out := range append(first, second...) {
		assert.Equal(t, []string{"r"}, test.Visits(out))
	}
	releaseAll(first)
	releaseAll(second)
	it1.Release()
	it2.Release()
	assert.Equal(t, 0, pool.InUse())
}

func TestConcurrentCapabilityTraversals(t *testing.T) {
	spec := &types.AggregateSpecifier{
		ComponentMetadata: types.ComponentMetadata{
			Name:         "tokens",
			Capabilities: []types.Capability{{Outputs: []string{"Token:norm", "Entity"}}},
		},
		Delegates: map[string]*types.Delegate{
			"tok": {Specifier: &types.PrimitiveSpecifier{
				ComponentMetadata: types.ComponentMetadata{Capabilities: []types.Capability{{Outputs: []string{"Token:norm"}, Languages: []string{"en"}}}},
				Implementation:    "tokenizer",
			}},
			"ent": {Specifier: &types.PrimitiveSpecifier{
				ComponentMetadata: types.ComponentMetadata{Capabilities: []types.Capability{{Outputs: []string{"Entity"}}}},
				Implementation:    "recorder",
			}},
		},
		FlowConstraints: &types.FlowConstraints{Type: types.FlowConstraintsCapabilityLanguage, Order: []string{"tok", "ent"}},
	}
	e := newEngine(t, spec, cas.NewPool(0))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		language, want := "en", 2
		if i%2 == 1 {
			language, want = "fr", 0
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				in := test.NewDocument("Hello World", language)
				outputs, err := e.ProcessAll(in)
				if !assert.NoError(t, err) {
					return
				}
				assert.Empty(t, outputs)
				assert.Len(t, in.Annotations("Token"), want)
				assert.Equal(t, []string{"ent"}, test.Visits(in))
			}
		}()
	}
	wg.Wait()
}

func TestConcurrentMultiplierTraversals(t *testing.T) {
	pool := cas.NewPool(0)
	e := newEngine(t, outputting(fixedAggregate("split", map[string]*types.Delegate{
		"seg": primitive("segmenter", nil),
	}, "seg")), pool)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				var want []string
				for k := 0; k < 3; k++ {
					want = append(want, fmt.Sprintf("w%d-%d-%d", worker, j, k))
				}
				outputs, err := e.ProcessAll(test.NewDocument(strings.Join(want, "\n"), ""))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, want, texts(outputs))
				releaseAll(outputs)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, pool.InUse())
}

func TestParallelStep(t *testing.T) {
	controller := newStepsController("steps",
		[]types.Step{types.ParallelStep{Keys: []string{"a", "m", "b"}}, types.SimpleStep{Key: "r"}},
		types.SimpleStep{Key: "r"})
	pool := cas.NewPool(0)
	delegates := recorders("a", "b", "r")
	delegates["m"] = primitive("countMultiplier", types.Configuration{"count": 2})
	e := newEngine(t, outputting(withFlowController(fixedAggregate("p", delegates), "steps", nil)),
		pool, types.WithComponentsRegistry(testRegistry(t, controller)))
	in := test.NewDocument("doc", "")

	outputs, err := e.ProcessAll(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc#0", "doc#1"}, texts(outputs))
	// the rest of the parallel step runs once the produced CASes are done
	assert.Equal(t, []string{"a", "b", "r"}, test.Visits(in))
	releaseAll(outputs)
	assert.Equal(t, 0, pool.InUse())
}

func TestRoutingErrors(t *testing.T) {
	tests := []struct {
		name  string
		steps []types.Step
		err   error
	}{
		{name: "unknown key", steps: []types.Step{types.SimpleStep{Key: "ghost"}}, err: types.ErrUnknownComponentKey},
		{name: "drop input", steps: []types.Step{types.FinalStep{ForceCasToBeDropped: true}}, err: types.ErrIllegalDropCas},
		{name: "unsupported step", steps: []types.Step{unknownStep{}}, err: types.ErrUnsupportedStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := newStepsController("steps", tt.steps)
			e := newEngine(t, withFlowController(fixedAggregate("a", recorders("r")), "steps", nil),
				cas.NewPool(0), types.WithComponentsRegistry(testRegistry(t, controller)))
			_, err := e.ProcessAll(test.NewDocument("doc", ""))
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

type unknownStep struct {
}

func (unknownStep) Kind() types.StepKind {
	return types.StepKind(99)
}

func TestNestedAggregate(t *testing.T) {
	inner := fixedAggregate("", recorders("x", "y"), "x", "y")
	delegates := recorders("a", "b")
	delegates["inner"] = &types.Delegate{Specifier: inner}
	e := newEngine(t, fixedAggregate("outer", delegates, "a", "inner", "b"), cas.NewPool(0))
	in := test.NewDocument("doc", "")

	_, err := e.ProcessAll(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "y", "b"}, test.Visits(in))
	nested, ok := e.Delegates().Get("inner")
	require.True(t, ok)
	assert.Equal(t, "inner", nested.Metadata().Name)
}

func TestNestedMultiplier(t *testing.T) {
	inner := outputting(fixedAggregate("inner", map[string]*types.Delegate{
		"m": primitive("countMultiplier", types.Configuration{"count": 2}),
	}, "m"))
	pool := cas.NewPool(0)
	e := newEngine(t, outputting(fixedAggregate("outer", map[string]*types.Delegate{
		"inner": {Specifier: inner},
		"r":     primitive("recorder", nil),
	}, "inner", "r")), pool)

	outputs, err := e.ProcessAll(test.NewDocument("doc", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc#0", "doc#1"}, texts(outputs))
	for _, out := range outputs {
		assert.Equal(t, []string{"r"}, test.Visits(out))
	}
	releaseAll(outputs)
	assert.Equal(t, 0, pool.InUse())
}

func TestSofaMapping(t *testing.T) {
	spec := fixedAggregate("german", recorders("tok"), "tok")
	spec.Capabilities = []types.Capability{{InputSofas: []string{"german"}}}
	spec.SofaMappings = []types.SofaMapping{{ComponentKey: "tok", AggregateSofaName: "german"}}
	e := newEngine(t, spec, cas.NewPool(0))

	in := test.NewDocument("english", "en")
	german, err := in.CreateView("german")
	require.NoError(t, err)
	german.SetDocumentText("deutsch")

	_, err = e.ProcessAll(in)
	require.NoError(t, err)
	assert.Empty(t, test.Visits(in))
	assert.Equal(t, []string{"tok"}, test.Visits(german))
}

func TestNestedSofaMapping(t *testing.T) {
	inner := fixedAggregate("inner", recorders("tok"), "tok")
	outer := fixedAggregate("outer", map[string]*types.Delegate{"inner": {Specifier: inner}}, "inner")
	outer.Capabilities = []types.Capability{{InputSofas: []string{"german"}}}
	outer.SofaMappings = []types.SofaMapping{{ComponentKey: "inner", AggregateSofaName: "german"}}
	e := newEngine(t, outer, cas.NewPool(0))

	in := test.NewDocument("english", "en")
	german, err := in.CreateView("german")
	require.NoError(t, err)

	_, err = e.ProcessAll(in)
	require.NoError(t, err)
	assert.Empty(t, test.Visits(in))
	assert.Equal(t, []string{"tok"}, test.Visits(german))
}

func TestCapabilityLanguageDefault(t *testing.T) {
	spec := &types.AggregateSpecifier{
		ComponentMetadata: types.ComponentMetadata{
			Name:         "languages",
			Capabilities: []types.Capability{{Outputs: []string{"Token", "Entity"}}},
		},
		Delegates: map[string]*types.Delegate{
			"enTok": {Specifier: &types.PrimitiveSpecifier{
				ComponentMetadata: types.ComponentMetadata{Capabilities: []types.Capability{{Outputs: []string{"Token"}, Languages: []string{"en"}}}},
				Implementation:    "recorder",
			}},
			"anyTok": {Specifier: &types.PrimitiveSpecifier{
				ComponentMetadata: types.ComponentMetadata{Capabilities: []types.Capability{{Outputs: []string{"Entity"}}}},
				Implementation:    "recorder",
			}},
		},
		FlowConstraints: &types.FlowConstraints{Type: types.FlowConstraintsCapabilityLanguage, Order: []string{"enTok", "anyTok"}},
	}
	e := newEngine(t, spec, cas.NewPool(0))
	assert.Equal(t, DefaultFlowControllerKey, e.FlowController().Key())

	en := test.NewDocument("doc", "en")
	_, err := e.ProcessAll(en)
	require.NoError(t, err)
	assert.Equal(t, []string{"enTok", "anyTok"}, test.Visits(en))

	fr := test.NewDocument("doc", "fr")
	_, err = e.ProcessAll(fr)
	require.NoError(t, err)
	assert.Equal(t, []string{"anyTok"}, test.Visits(fr))
}

func TestAddRemoveDelegates(t *testing.T) {
	e := newEngine(t, fixedAggregate("dynamic", recorders("a", "b"), "a", "b"), cas.NewPool(0))

	require.NoError(t, e.AddDelegate("z", primitive("recorder", nil)))
	in := test.NewDocument("doc", "")
	_, err := e.ProcessAll(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "z"}, test.Visits(in))

	assert.True(t, errors.Is(e.AddDelegate("a", primitive("recorder", nil)), types.ErrDuplicateKey))
	assert.True(t, errors.Is(e.AddDelegate("fc", primitive("nope", nil)), types.ErrComponentNotFound))
	_, ok := e.Specifier().Delegates["fc"]
	assert.False(t, ok)

	require.NoError(t, e.RemoveDelegates("a"))
	in = test.NewDocument("doc", "")
	_, err = e.ProcessAll(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "z"}, test.Visits(in))
	assert.Equal(t, []string{"b"}, e.Specifier().FlowConstraints.Order)

	assert.True(t, errors.Is(e.RemoveDelegates("a"), types.ErrUndefinedKey))
	assert.Equal(t, []string{"b", "z"}, e.Delegates().Keys())
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		spec *types.AggregateSpecifier
		err  error
	}{
		{
			name: "flow controller not registered",
			spec: withFlowController(fixedAggregate("a", recorders("r")), "nope", nil),
			err:  types.ErrFlowControllerNotFound,
		},
		{
			name: "not a flow controller",
			spec: withFlowController(fixedAggregate("a", recorders("r")), "recorder", nil),
			err:  types.ErrNotFlowController,
		},
		{
			name: "not an annotator",
			spec: fixedAggregate("a", map[string]*types.Delegate{"fc": primitive("fixedFlow", nil)}),
			err:  types.ErrNotAnnotator,
		},
		{
			name: "component not registered",
			spec: fixedAggregate("a", map[string]*types.Delegate{"x": primitive("nope", nil)}),
			err:  types.ErrComponentNotFound,
		},
		{
			name: "undefined key in constraints",
			spec: fixedAggregate("a", recorders("r"), "r", "ghost"),
			err:  types.ErrUndefinedKey,
		},
		{
			name: "opaque delegate without factory",
			spec: fixedAggregate("a", map[string]*types.Delegate{"remote": {Specifier: &types.OpaqueSpecifier{Uri: "http://localhost:1"}}}),
			err:  types.ErrNoFactory,
		},
		{
			name: "flow controller key taken",
			spec: withFlowController(fixedAggregate("a", recorders("fc")), "fixedFlow", nil),
			err:  types.ErrDuplicateKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAggregateEngine(tt.spec,
				types.WithLogger(types.DiscardLogger{}),
				types.WithComponentsRegistry(testRegistry(t)))
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.NewEngineMetrics()
	e := newEngine(t, fixedAggregate("measured", recorders("a", "b"), "a", "b"), cas.NewPool(0), types.WithMetrics(m))
	_, err := e.ProcessAll(test.NewDocument("doc", ""))
	require.NoError(t, err)

	failing := newEngine(t, fixedAggregate("failing", map[string]*types.Delegate{"f": primitive("failAnnotator", nil)}),
		cas.NewPool(0), types.WithMetrics(m))
	_, err = failing.ProcessAll(test.NewDocument("doc", ""))
	require.Error(t, err)

	got := m.Get()
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, int64(1), got.Success)
	assert.Equal(t, int64(1), got.Failed)
	assert.Equal(t, int64(0), got.Current)
	assert.Equal(t, int64(3), got.Invocations)
}

func TestCollectionProcessComplete(t *testing.T) {
	e := newEngine(t, fixedAggregate("a", recorders("a", "b")), cas.NewPool(0))
	assert.NoError(t, e.CollectionProcessComplete())
}

// recordingAspect records the invocations it advises
type recordingAspect struct {
	keys   []string
	errors int
}

func (a *recordingAspect) Order() int {
	return 10
}

func (a *recordingAspect) PointCut(ctx types.InvocationContext) bool {
	return ctx.Key != "skip"
}

func (a *recordingAspect) Before(ctx types.InvocationContext, _ types.CAS) {
	a.keys = append(a.keys, types.In+":"+ctx.Key)
}

func (a *recordingAspect) After(ctx types.InvocationContext, _ types.CAS, err error) {
	a.keys = append(a.keys, types.Out+":"+ctx.Key)
	if err != nil {
		a.errors++
	}
}

func TestAspects(t *testing.T) {
	aspect := &recordingAspect{}
	delegates := recorders("a", "skip")
	delegates["f"] = primitive("failAnnotator", nil)
	spec := withFlowController(fixedAggregate("advised", delegates, "a", "skip", "f"),
		"fixedFlow", types.Configuration{"continueOnFailureKeys": "f"})
	e := newEngine(t, spec, cas.NewPool(0), types.WithAspects(aspect))
	_, err := e.ProcessAll(test.NewDocument("doc", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"IN:a", "OUT:a", "IN:f", "OUT:f"}, aspect.keys)
	assert.Equal(t, 1, aspect.errors)
}

func TestOnDebug(t *testing.T) {
	var records []string
	onDebug := func(aggregate string, flowType string, componentKey string, _ types.CAS, err error) {
		records = append(records, aggregate+":"+flowType+":"+componentKey)
	}
	e := newEngine(t, fixedAggregate("debugged", recorders("a", "b"), "a", "b"), cas.NewPool(0), types.WithOnDebug(onDebug))
	_, err := e.ProcessAll(test.NewDocument("doc", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"debugged:IN:a", "debugged:OUT:a", "debugged:IN:b", "debugged:OUT:b"}, records)
}
