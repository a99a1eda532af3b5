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

//描述符配置示例：
// tok:
//   kind: primitive
//   implementation: tokenizer
//   configuration:
//     pattern: "[\\p{L}\\p{N}]+"
//   capabilities:
//     - outputs: [Token, "Token:norm"]
import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/components/base"
	"github.com/rulego/casflow/utils/maps"
)

// NormFeature lower-cased token text
const NormFeature = "norm"

func init() {
	Registry.Add(&Tokenizer{})
}

// TokenizerConfiguration 分词器配置
type TokenizerConfiguration struct {
	// Pattern matches one token
	Pattern string `default:"[\\p{L}\\p{N}]+" validate:"required"`
	// TypeName annotation type of the tokens
	TypeName string `default:"Token" validate:"required"`
}

// Tokenizer adds one annotation per match of Pattern in the document text,
// with the lower-cased text as norm feature. With a result specification it
// only runs when the specification asks for TypeName or its norm feature.
type Tokenizer struct {
	Config     TokenizerConfiguration
	regexp     *regexp.Regexp
	resultSpec *types.ResultSpecification
}

func (x *Tokenizer) Type() string {
	return "tokenizer"
}

func (x *Tokenizer) New() types.Component {
	return &Tokenizer{}
}

func (x *Tokenizer) Init(_ types.ComponentContext, configuration types.Configuration) error {
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	re, err := regexp.Compile(x.Config.Pattern)
	if err != nil {
		return err
	}
	x.regexp = re
	return nil
}

func (x *Tokenizer) SetResultSpecification(rs *types.ResultSpecification) {
	x.resultSpec = rs
}

func (x *Tokenizer) Process(abstractCas types.AbstractCas) error {
	cas, err := base.CasUtils.RawCas(abstractCas)
	if err != nil {
		return err
	}
	// a requested type covers its features too
	norm := x.Config.TypeName + types.FeatureSeparator + NormFeature
	if !x.resultSpec.IsEmpty() && !x.resultSpec.Contains(norm, cas.DocumentLanguage()) {
		return nil
	}
	text := cas.DocumentText()
	offsets := newRuneOffsets(text)
	for _, loc := range x.regexp.FindAllStringIndex(text, -1) {
		cas.AddAnnotation(types.Annotation{
			Type:     x.Config.TypeName,
			Begin:    offsets.at(loc[0]),
			End:      offsets.at(loc[1]),
			Features: map[string]interface{}{NormFeature: strings.ToLower(text[loc[0]:loc[1]])},
		})
	}
	return nil
}

func (x *Tokenizer) Destroy() {
}

// runeOffsets converts increasing byte offsets to rune offsets
type runeOffsets struct {
	text  string
	byteI int
	runeI int
}

func newRuneOffsets(text string) *runeOffsets {
	return &runeOffsets{text: text}
}

func (r *runeOffsets) at(byteOffset int) int {
	if byteOffset < r.byteI {
		return utf8.RuneCountInString(r.text[:byteOffset])
	}
	r.runeI += utf8.RuneCountInString(r.text[r.byteI:byteOffset])
	r.byteI = byteOffset
	return r.runeI
}
