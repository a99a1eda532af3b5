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

package annotator

import (
	"testing"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/cas"
	"github.com/rulego/casflow/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initAnnotator(t *testing.T, componentType string, configuration types.Configuration) types.Annotator {
	c, err := test.CreateAndInitComponent(componentType, test.NewComponentContext(componentType), configuration, Registry)
	require.NoError(t, err)
	return c.(types.Annotator)
}

func TestTokenizer(t *testing.T) {
	tok := initAnnotator(t, "tokenizer", nil)
	doc := test.NewDocument("Héllo, Go world!", "en")
	require.NoError(t, tok.Process(doc))

	tokens := doc.Annotations("Token")
	require.Len(t, tokens, 3)
	jcas := cas.NewJCas(doc)
	assert.Equal(t, "Héllo", jcas.CoveredText(tokens[0]))
	assert.Equal(t, 7, tokens[1].Begin)
	assert.Equal(t, "world", jcas.CoveredText(tokens[2]))
	assert.Equal(t, "héllo", tokens[0].Features[NormFeature])
}

func TestTokenizerResultSpecification(t *testing.T) {
	tok := initAnnotator(t, "tokenizer", types.Configuration{"pattern": `\S+`, "typeName": "Word"})
	setter := tok.(types.ResultSpecSetter)

	rs := types.NewResultSpecification()
	rs.Add("Sentence")
	setter.SetResultSpecification(rs)
	doc := test.NewDocument("a b", "en")
	require.NoError(t, tok.Process(doc))
	assert.Empty(t, doc.Annotations("Word"))

	rs = types.NewResultSpecification()
	rs.Add("Word:norm", "de")
	setter.SetResultSpecification(rs)
	require.NoError(t, tok.Process(doc))
	assert.Empty(t, doc.Annotations("Word"), "asked for German only")

	doc.SetDocumentLanguage("de")
	require.NoError(t, tok.Process(doc))
	words := doc.Annotations("Word")
	require.Len(t, words, 2)
	assert.Equal(t, "a", words[0].Features[NormFeature])

	rs = types.NewResultSpecification()
	rs.Add("Word")
	setter.SetResultSpecification(rs)
	doc = test.NewDocument("A", "en")
	require.NoError(t, tok.Process(doc))
	assert.Equal(t, "a", doc.Annotations("Word")[0].Features[NormFeature])
}

func TestTokenizerBadPattern(t *testing.T) {
	_, err := test.CreateAndInitComponent("tokenizer", test.NewComponentContext("tok"), types.Configuration{"pattern": "("}, Registry)
	assert.Error(t, err)
}

func TestExprAnnotator(t *testing.T) {
	names := initAnnotator(t, "exprAnnotator", types.Configuration{
		"forEach":  "Token",
		"expr":     "covered matches '^[A-Z]'",
		"typeName": "Name",
		"features": map[string]interface{}{"source": "capitalized"},
	})
	assert.Equal(t, types.CasInterfaceJCas, names.(types.CasInterfaceGetter).RequiredCasInterface())

	doc := test.NewDocument("meet Ada and Alan", "en")
	require.NoError(t, initAnnotator(t, "tokenizer", nil).Process(doc))
	require.NoError(t, names.Process(cas.NewJCas(doc)))
	found := doc.Annotations("Name")
	require.Len(t, found, 2)
	assert.Equal(t, "Ada", cas.NewJCas(doc).CoveredText(found[0]))
	assert.Equal(t, "capitalized", found[1].Features["source"])

	english := initAnnotator(t, "exprAnnotator", types.Configuration{
		"expr":     "language == 'en' && len(annotations.Token) > 3",
		"typeName": "EnglishDocument",
	})
	require.NoError(t, english.Process(cas.NewJCas(doc)))
	documents := doc.Annotations("EnglishDocument")
	require.Len(t, documents, 1)
	assert.Equal(t, 17, documents[0].End)

	// the raw CAS is not accepted
	assert.Error(t, english.Process(doc))
}

func TestExprAnnotatorConfiguration(t *testing.T) {
	_, err := test.CreateAndInitComponent("exprAnnotator", test.NewComponentContext("x"), types.Configuration{"expr": "true"}, Registry)
	assert.Error(t, err)
	_, err = test.CreateAndInitComponent("exprAnnotator", test.NewComponentContext("x"),
		types.Configuration{"expr": "1 +", "typeName": "X"}, Registry)
	assert.Error(t, err)
}

func TestJsAnnotator(t *testing.T) {
	annotator := initAnnotator(t, "jsAnnotator", types.Configuration{
		"jsScript": `
			var out = [];
			var tokens = annotations.Token || [];
			for (var i = 0; i < tokens.length; i++) {
				var t = tokens[i];
				if (t.features.norm === vars.keyword) {
					out.push({type: "Keyword", begin: t.begin, end: t.end, features: {view: doc.view}});
				}
			}
			return out;`,
		"vars": map[string]interface{}{"keyword": "go"},
	})
	defer annotator.Destroy()

	doc := test.NewDocument("Let's Go now", "en")
	require.NoError(t, initAnnotator(t, "tokenizer", nil).Process(doc))
	require.NoError(t, annotator.Process(doc))
	keywords := doc.Annotations("Keyword")
	require.Len(t, keywords, 1)
	assert.Equal(t, 6, keywords[0].Begin)
	assert.Equal(t, 8, keywords[0].End)
	assert.Equal(t, types.DefaultView, keywords[0].Features["view"])
}

func TestJsAnnotatorReturnFormat(t *testing.T) {
	tests := []struct {
		script string
		ok     bool
	}{
		{script: "return null;", ok: true},
		{script: "return [];", ok: true},
		{script: "return 'x';"},
		{script: "return [1];"},
		{script: "return [{begin: 0, end: 1}];"},
		{script: "return [{type: 'A', begin: 2, end: 1}];"},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			annotator := initAnnotator(t, "jsAnnotator", types.Configuration{"jsScript": tt.script})
			doc := test.NewDocument("abc", "")
			err := annotator.Process(doc)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrJsAnnotateReturnFormat)
			}
			assert.Empty(t, doc.Annotations(""))
		})
	}
}
