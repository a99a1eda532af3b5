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

package descriptor

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/rulego/casflow/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var aggregateYaml = `
kind: aggregate
name: pipeline
operationalProperties:
  outputsNewCases: true
capabilities:
  - outputs: [Token, Sentence]
    languages: [en]
delegates:
  tok:
    import:
      location: tokenizer.yaml
  seg:
    kind: primitive
    name: segmenter
    implementation: segmenter
    configuration:
      separator: "."
    operationalProperties:
      outputsNewCases: true
      modifiesCas: false
flowController:
  key: fc
  implementation: fixedFlow
  configuration:
    actionAfterCasMultiplier: continue
flowConstraints:
  type: fixed
  order: [seg, tok]
sofaMappings:
  - componentKey: tok
    aggregateSofaName: _InitialView
`

var tokenizerYaml = `
kind: primitive
name: tokenizer
implementation: tokenizer
capabilities:
  - outputs: [Token]
    languages: [en]
`

func TestUnmarshalAggregate(t *testing.T) {
	spec, err := Unmarshal([]byte(aggregateYaml), FormatYaml)
	require.NoError(t, err)
	agg, ok := spec.(*types.AggregateSpecifier)
	require.True(t, ok)
	assert.Equal(t, "pipeline", agg.Name)
	assert.True(t, agg.OperationalProperties.OutputsNewCases)
	require.Len(t, agg.Delegates, 2)
	assert.False(t, agg.Delegates["tok"].IsResolved())
	assert.Equal(t, "tokenizer.yaml", agg.Delegates["tok"].Import.Location)

	seg := agg.Delegates["seg"].Specifier.(*types.PrimitiveSpecifier)
	assert.Equal(t, "segmenter", seg.Implementation)
	assert.Equal(t, ".", seg.Configuration["separator"])
	assert.True(t, seg.IsCasMultiplier())

	require.NotNil(t, agg.FlowController)
	assert.Equal(t, "fc", agg.FlowController.Key)
	assert.Equal(t, "fixedFlow", agg.FlowController.Specifier.Implementation)
	assert.Equal(t, []string{"seg", "tok"}, agg.FlowConstraints.Order)
	assert.Equal(t, "tok", agg.SofaMappings[0].ComponentKey)
}

func TestMarshalKeepsImports(t *testing.T) {
	spec, err := Unmarshal([]byte(aggregateYaml), FormatYaml)
	require.NoError(t, err)
	agg := spec.(*types.AggregateSpecifier)
	// resolution fills the specifier but keeps the import
	agg.Delegates["tok"].Specifier = &types.PrimitiveSpecifier{Implementation: "tokenizer"}

	for _, format := range []string{FormatJson, FormatYaml} {
		data, err := Marshal(agg, format)
		require.NoError(t, err)
		again, err := Unmarshal(data, format)
		require.NoError(t, err)
		aggAgain := again.(*types.AggregateSpecifier)
		assert.Equal(t, "tokenizer.yaml", aggAgain.Delegates["tok"].Import.Location, format)
		assert.Nil(t, aggAgain.Delegates["tok"].Specifier, format)
		assert.Equal(t, "segmenter", aggAgain.Delegates["seg"].Specifier.(*types.PrimitiveSpecifier).Implementation, format)
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"name":"x"}`), FormatJson)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	_, err = UnmarshalFlowController([]byte(`{"kind":"primitive"}`), FormatJson)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	assert.Equal(t, FormatYaml, FormatOf("a/b.YML"))
	assert.Equal(t, FormatJson, FormatOf("a/b.json"))
}

func TestFileResourceManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "org", "example"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte(aggregateYaml), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "org", "example", "Tokenizer.yaml"), []byte(tokenizerYaml), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.json"),
		[]byte(`{"kind":"flowController","implementation":"fixedFlow","configuration":{"actionAfterCasMultiplier":"stop"}}`), 0644))

	rm := NewFileResourceManager(dir)
	location, err := rm.ResolveName("org.example.Tokenizer")
	require.NoError(t, err)
	assert.Equal(t, "file", location.Scheme)

	spec, err := rm.ParseSpecifier(location)
	require.NoError(t, err)
	assert.Equal(t, "tokenizer", spec.Metadata().Name)
	assert.Equal(t, location, spec.SourceUrl())

	_, err = rm.ResolveName("org.example.Missing")
	assert.True(t, errors.Is(err, ErrNameNotFound))

	flowUrl, err := FileUrl(filepath.Join(dir, "flow.json"))
	require.NoError(t, err)
	fc, err := rm.ParseFlowControllerSpecifier(flowUrl)
	require.NoError(t, err)
	assert.Equal(t, "stop", fc.Configuration["actionAfterCasMultiplier"])

	agg, err := LoadFile(filepath.Join(dir, "pipeline.yaml"))
	require.NoError(t, err)
	assert.Equal(t, KindAggregate, agg.Kind().String())
	assert.NotNil(t, agg.SourceUrl())
}

func TestSqlResourceManager(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "descriptors.db"))
	require.NoError(t, err)
	rm := NewSqlResourceManager(db, "sqlite")
	defer rm.Close()
	require.NoError(t, rm.CreateTable())

	require.NoError(t, rm.Save("pipeline", FormatYaml, []byte(aggregateYaml)))
	require.NoError(t, rm.Save("tokenizer.yaml", FormatYaml, []byte(tokenizerYaml)))
	// saving twice replaces the row
	require.NoError(t, rm.Save("tokenizer.yaml", FormatYaml, []byte(tokenizerYaml)))
	require.NoError(t, rm.SaveSpecifier("segmenter", &types.PrimitiveSpecifier{
		ComponentMetadata: types.ComponentMetadata{Name: "segmenter"},
		Implementation:    "segmenter",
	}))

	spec, err := rm.Load("pipeline")
	require.NoError(t, err)
	agg := spec.(*types.AggregateSpecifier)
	assert.Equal(t, "db:///pipeline", agg.SourceUrl().String())

	// relative imports resolve to sibling rows
	imported := agg.SourceUrl().ResolveReference(mustParse(t, agg.Delegates["tok"].Import.Location))
	tok, err := rm.ParseSpecifier(imported)
	require.NoError(t, err)
	assert.Equal(t, "tokenizer", tok.Metadata().Name)

	seg, err := rm.Load("segmenter")
	require.NoError(t, err)
	assert.Equal(t, "segmenter", seg.(*types.PrimitiveSpecifier).Implementation)

	_, err = rm.ResolveName("missing")
	assert.True(t, errors.Is(err, ErrNameNotFound))
}

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
