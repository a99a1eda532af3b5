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

package cas

import "github.com/rulego/casflow/api/types"

// JCas typed view over a CAS. Offsets are rune offsets into the document text.
type JCas struct {
	cas types.CAS
}

var _ types.JCas = (*JCas)(nil)

// NewJCas wraps cas
func NewJCas(cas types.CAS) *JCas {
	return &JCas{cas: cas}
}

func (j *JCas) Cas() types.CAS {
	return j.cas
}

func (j *JCas) Release() {
	j.cas.Release()
}

func (j *JCas) DocumentText() string {
	return j.cas.DocumentText()
}

func (j *JCas) DocumentLanguage() string {
	return j.cas.DocumentLanguage()
}

func (j *JCas) Select(typeName string) []types.Annotation {
	return j.cas.Annotations(typeName)
}

func (j *JCas) Add(typeName string, begin, end int, features map[string]interface{}) types.Annotation {
	a := types.Annotation{Type: typeName, Begin: begin, End: end, Features: features}
	j.cas.AddAnnotation(a)
	return a
}

func (j *JCas) CoveredText(annotation types.Annotation) string {
	text := []rune(j.cas.DocumentText())
	begin, end := annotation.Begin, annotation.End
	if begin < 0 {
		begin = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if begin >= end {
		return ""
	}
	return string(text[begin:end])
}

// Adapt returns cas in the abstraction named by casInterface
func Adapt(cas types.CAS, casInterface string) types.AbstractCas {
	if casInterface == types.CasInterfaceJCas {
		return NewJCas(cas)
	}
	return cas
}
