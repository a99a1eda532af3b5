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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func annotatorMd(name string) *types.ComponentMetadata {
	return &types.ComponentMetadata{Name: name, OperationalProperties: types.OperationalProperties{ModifiesCas: true}}
}

func multiplierMd(name string) *types.ComponentMetadata {
	md := annotatorMd(name)
	md.OperationalProperties.OutputsNewCases = true
	return md
}

func newFixedFlow(t *testing.T, delegates map[string]*types.ComponentMetadata, configuration types.Configuration, order ...string) *FixedFlowController {
	ctx := test.NewFlowControllerContext(nil, delegates, order...)
	c, err := test.CreateAndInitComponent("fixedFlow", ctx, configuration, Registry)
	require.NoError(t, err)
	return c.(*FixedFlowController)
}

func next(t *testing.T, f types.Flow) types.Step {
	step, err := f.Next()
	require.NoError(t, err)
	return step
}

func TestFixedFlowOrdering(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{
		"a": annotatorMd("a"),
		"b": annotatorMd("b"),
		"c": annotatorMd("c"),
	}
	controller := newFixedFlow(t, delegates, nil, "c", "a", "b")
	assert.Equal(t, ActionDropIfNewCasProduced, controller.Config.ActionAfterCasMultiplier)

	f, err := controller.ComputeFlow(test.NewDocument("text", "en"))
	require.NoError(t, err)
	var keys []string
	for i := 0; i < 3; i++ {
		step := next(t, f)
		require.IsType(t, types.SimpleStep{}, step)
		keys = append(keys, step.(types.SimpleStep).Key)
	}
	assert.Equal(t, []string{"c", "a", "b"}, keys)
	assert.Equal(t, types.FinalStep{}, next(t, f))
}

func TestFixedFlowDefaultOrder(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{"b": annotatorMd("b"), "a": annotatorMd("a")}
	controller := newFixedFlow(t, delegates, nil)
	assert.Equal(t, []string{"a", "b"}, controller.Sequence())

	// configuration wins over the flow constraints
	controller = newFixedFlow(t, delegates, types.Configuration{"order": []string{"b"}}, "a", "b")
	assert.Equal(t, []string{"b"}, controller.Sequence())
}

func TestFixedFlowInitErrors(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{"a": annotatorMd("a")}

	ctx := test.NewFlowControllerContext(nil, delegates, "a", "missing")
	_, err := test.CreateAndInitComponent("fixedFlow", ctx, nil, Registry)
	assert.True(t, errors.Is(err, types.ErrUndefinedKey))

	ctx = test.NewFlowControllerContext(nil, delegates, "a")
	_, err = test.CreateAndInitComponent("fixedFlow", ctx, types.Configuration{"actionAfterCasMultiplier": "explode"}, Registry)
	assert.Error(t, err)

	_, err = test.CreateAndInitComponent("fixedFlow", test.NewComponentContext("fc"), nil, Registry)
	assert.True(t, errors.Is(err, ErrNoFlowControllerContext))
}

func TestActionAfterCasMultiplier(t *testing.T) {
	cont := types.SimpleStep{Key: "b"}
	tests := []struct {
		action string
		k      int
		// expected step of a top-level CAS and of a CAS produced inside the aggregate
		topLevel types.Step
		internal types.Step
	}{
		{ActionContinue, 0, cont, cont},
		{ActionContinue, 1, cont, cont},
		{ActionContinue, 2, cont, cont},
		{ActionStop, 0, types.FinalStep{}, types.FinalStep{}},
		{ActionStop, 1, types.FinalStep{}, types.FinalStep{}},
		{ActionStop, 2, types.FinalStep{}, types.FinalStep{}},
		{ActionDrop, 0, types.FinalStep{}, types.FinalStep{ForceCasToBeDropped: true}},
		{ActionDrop, 1, types.FinalStep{}, types.FinalStep{ForceCasToBeDropped: true}},
		{ActionDrop, 2, types.FinalStep{}, types.FinalStep{ForceCasToBeDropped: true}},
		{ActionDropIfNewCasProduced, 0, cont, cont},
		{ActionDropIfNewCasProduced, 1, types.FinalStep{}, types.FinalStep{ForceCasToBeDropped: true}},
		{ActionDropIfNewCasProduced, 2, types.FinalStep{}, types.FinalStep{ForceCasToBeDropped: true}},
	}
	delegates := map[string]*types.ComponentMetadata{
		"src": multiplierMd("src"),
		"m":   multiplierMd("m"),
		"b":   annotatorMd("b"),
	}
	doc := test.NewDocument("text", "")
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/k=%d", tt.action, tt.k), func(t *testing.T) {
			configuration := types.Configuration{"actionAfterCasMultiplier": tt.action}

			top, err := newFixedFlow(t, delegates, configuration, "m", "b").ComputeFlow(doc)
			require.NoError(t, err)
			assert.Equal(t, types.SimpleStep{Key: "m"}, next(t, top))
			for i := 0; i < tt.k; i++ {
				_, err := top.NewCasProduced(doc, "m")
				require.NoError(t, err)
			}
			assert.Equal(t, tt.topLevel, next(t, top))

			// the child of src is internally created and reaches m next
			outer, err := newFixedFlow(t, delegates, configuration, "src", "m", "b").ComputeFlow(doc)
			require.NoError(t, err)
			assert.Equal(t, types.SimpleStep{Key: "src"}, next(t, outer))
			child, err := outer.NewCasProduced(doc, "src")
			require.NoError(t, err)
			assert.Equal(t, types.SimpleStep{Key: "m"}, next(t, child))
			for i := 0; i < tt.k; i++ {
				_, err := child.NewCasProduced(doc, "m")
				require.NoError(t, err)
			}
			assert.Equal(t, tt.internal, next(t, child))
		})
	}
}

func TestNewCasStartsAfterProducer(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{
		"a": annotatorMd("a"),
		"m": multiplierMd("m"),
		"b": annotatorMd("b"),
		"c": annotatorMd("c"),
	}
	controller := newFixedFlow(t, delegates, nil, "a", "m", "b", "c")
	f, err := controller.ComputeFlow(test.NewDocument("x", ""))
	require.NoError(t, err)
	assert.Equal(t, types.SimpleStep{Key: "a"}, next(t, f))
	assert.Equal(t, types.SimpleStep{Key: "m"}, next(t, f))

	child, err := f.NewCasProduced(test.NewDocument("y", ""), "m")
	require.NoError(t, err)
	assert.Equal(t, types.SimpleStep{Key: "b"}, next(t, child))
	assert.Equal(t, types.SimpleStep{Key: "c"}, next(t, child))
	assert.Equal(t, types.FinalStep{}, next(t, child))

	_, err = f.NewCasProduced(test.NewDocument("z", ""), "nobody")
	assert.True(t, errors.Is(err, types.ErrUnknownComponentKey))
}

func TestFixedFlowAddRemove(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{"a": annotatorMd("a"), "b": annotatorMd("b")}
	controller := newFixedFlow(t, delegates, nil, "a", "b")
	doc := test.NewDocument("x", "")
	before, err := controller.ComputeFlow(doc)
	require.NoError(t, err)

	delegates["c"] = multiplierMd("c")
	require.NoError(t, controller.AddAnalysisEngines([]string{"c"}))
	require.NoError(t, controller.RemoveAnalysisEngines([]string{"a"}))
	assert.Equal(t, []string{"b", "c"}, controller.Sequence())

	// a flow keeps the sequence it was created with
	assert.Equal(t, types.SimpleStep{Key: "a"}, next(t, before))
	assert.Equal(t, types.SimpleStep{Key: "b"}, next(t, before))
	assert.Equal(t, types.FinalStep{}, next(t, before))

	after, err := controller.ComputeFlow(doc)
	require.NoError(t, err)
	assert.Equal(t, types.SimpleStep{Key: "b"}, next(t, after))
	assert.Equal(t, types.SimpleStep{Key: "c"}, next(t, after))
	// c is a multiplier that produced nothing, the default action continues
	assert.Equal(t, types.FinalStep{}, next(t, after))
}

func TestFixedFlowConcurrentReaders(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{"a": annotatorMd("a"), "b": annotatorMd("b")}
	controller := newFixedFlow(t, delegates, nil, "a", "b")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				f, _ := controller.ComputeFlow(nil)
				for {
					step, err := f.Next()
					if err != nil || step.Kind() == types.StepFinal {
						break
					}
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		_ = controller.RemoveAnalysisEngines([]string{"b"})
		_ = controller.AddAnalysisEngines([]string{"b"})
	}
	wg.Wait()
	assert.Equal(t, []string{"a", "b"}, controller.Sequence())
}

func TestContinueOnFailure(t *testing.T) {
	delegates := map[string]*types.ComponentMetadata{"a": annotatorMd("a"), "b": annotatorMd("b")}
	f, err := newFixedFlow(t, delegates, types.Configuration{"continueOnFailureKeys": []string{"a"}}, "a", "b").ComputeFlow(nil)
	require.NoError(t, err)
	assert.True(t, f.ContinueOnFailure("a", errors.New("boom")))
	assert.False(t, f.ContinueOnFailure("b", errors.New("boom")))

	f, err = newFixedFlow(t, delegates, types.Configuration{"continueOnFailureKeys": "*"}, "a", "b").ComputeFlow(nil)
	require.NoError(t, err)
	assert.True(t, f.ContinueOnFailure("b", errors.New("boom")))
}

func TestFlowBase(t *testing.T) {
	var f FlowBase
	_, err := f.NewCasProduced(nil, "m")
	assert.True(t, errors.Is(err, types.ErrCasMultiplierNotSupported))
	assert.False(t, f.ContinueOnFailure("m", nil))
	f.Aborted()

	var c ControllerBase
	assert.Equal(t, types.CasInterfaceCAS, c.RequiredCasInterface())
	assert.NoError(t, c.AddAnalysisEngines([]string{"x"}))
	assert.NoError(t, c.CollectionProcessComplete())
}
