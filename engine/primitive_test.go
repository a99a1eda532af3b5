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
	"sync"
	"testing"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/cas"
	"github.com/rulego/casflow/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrimitive(t *testing.T, implementation string, pool *cas.Pool) *PrimitiveEngine {
	config := NewConfig(types.WithLogger(types.DiscardLogger{}), types.WithCasPool(pool), types.WithComponentsRegistry(testRegistry(t)))
	e, err := NewPrimitiveEngine(&types.PrimitiveSpecifier{Implementation: implementation}, types.FactoryContext{Key: implementation, Config: config})
	require.NoError(t, err)
	t.Cleanup(e.Destroy)
	return e
}

func drainTexts(t *testing.T, iter types.CasIterator) []string {
	var result []string
	for {
		ok, err := iter.HasNext()
		require.NoError(t, err)
		if !ok {
			return result
		}
		out, err := iter.Next()
		require.NoError(t, err)
		result = append(result, out.DocumentText())
		out.Release()
	}
}

func TestPrimitiveResultSpecPerCall(t *testing.T) {
	e := newPrimitive(t, "tokenizer", cas.NewPool(0))
	entities := types.NewResultSpecification()
	entities.Add("Entity")
	e.SetResultSpecification(entities)

	tokens := types.NewResultSpecification()
	tokens.Add("Token")
	withTokens := test.NewDocument("Hello World", "en")
	iter, err := e.ProcessWithResultSpecification(withTokens, tokens)
	require.NoError(t, err)
	iter.Release()
	assert.Len(t, withTokens.Annotations("Token"), 2)

	// the default specification is still in force
	withDefault := test.NewDocument("Hello World", "en")
	iter, err = e.ProcessAndOutputNewCASes(withDefault)
	require.NoError(t, err)
	iter.Release()
	assert.Empty(t, withDefault.Annotations("Token"))
}

func TestPrimitiveConcurrentResultSpecs(t *testing.T) {
	e := newPrimitive(t, "tokenizer", cas.NewPool(0))
	tokens := types.NewResultSpecification()
	tokens.Add("Token")
	entities := types.NewResultSpecification()
	entities.Add("Entity")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		rs, want := tokens, 3
		if i%2 == 1 {
			rs, want = entities, 0
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				doc := test.NewDocument("one two three", "en")
				iter, err := e.ProcessWithResultSpecification(doc, rs)
				if !assert.NoError(t, err) {
					return
				}
				iter.Release()
				assert.Len(t, doc.Annotations("Token"), want)
			}
		}()
	}
	wg.Wait()
}

func TestPrimitiveInterleavedMultiplier(t *testing.T) {
	pool := cas.NewPool(0)
	e := newPrimitive(t, "segmenter", pool)

	it1, err := e.ProcessAndOutputNewCASes(test.NewDocument("a1\na2\na3", ""))
	require.NoError(t, err)
	it2, err := e.ProcessAndOutputNewCASes(test.NewDocument("b1\nb2\nb3", ""))
	require.NoError(t, err)
	// the first traversal still holds its instance
	assert.Equal(t, 2, e.Instances())

	first, err := it1.Next()
	require.NoError(t, err)
	assert.Equal(t, "a1", first.DocumentText())
	first.Release()
	second, err := it2.Next()
	require.NoError(t, err)
	assert.Equal(t, "b1", second.DocumentText())
	second.Release()

	assert.Equal(t, []string{"a2", "a3"}, drainTexts(t, it1))
	assert.Equal(t, []string{"b2", "b3"}, drainTexts(t, it2))
	it1.Release()
	it2.Release()
	assert.Equal(t, 0, pool.InUse())

	// drained instances are reused
	it3, err := e.ProcessAndOutputNewCASes(test.NewDocument("c1\nc2", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, drainTexts(t, it3))
	assert.Equal(t, 2, e.Instances())
}

func TestPrimitiveReleaseReturnsInstance(t *testing.T) {
	pool := cas.NewPool(0)
	e := newPrimitive(t, "segmenter", pool)

	it, err := e.ProcessAndOutputNewCASes(test.NewDocument("x1\nx2\nx3", ""))
	require.NoError(t, err)
	out, err := it.Next()
	require.NoError(t, err)
	it.Release()
	// only the CAS handed out is still in use
	assert.Equal(t, 1, pool.InUse())
	out.Release()
	_, err = it.HasNext()
	assert.ErrorIs(t, err, types.ErrIteratorReleased)

	again, err := e.ProcessAndOutputNewCASes(test.NewDocument("y1", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"y1"}, drainTexts(t, again))
	assert.Equal(t, 1, e.Instances())
	assert.Equal(t, 0, pool.InUse())
}
