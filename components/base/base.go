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

// Package base provides helpers shared by annotators and endpoints.
package base

import (
	"errors"
	"fmt"

	"github.com/rulego/casflow/api/types"
)

// Environment keys visible to expressions and scripts
const (
	IdKey          = "id"
	TextKey        = "text"
	LanguageKey    = "language"
	ViewKey        = "view"
	AnnotationsKey = "annotations"
)

// ErrUnsupportedCas the CAS abstraction handed to a component is not supported
var ErrUnsupportedCas = errors.New("unsupported CAS abstraction")

var CasUtils = &casUtils{}

type casUtils struct {
}

// RawCas returns the CAS behind any supported abstraction
func (n *casUtils) RawCas(cas types.AbstractCas) (types.CAS, error) {
	if c, ok := types.CasOf(cas); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedCas, cas)
}

// GetEnv builds the variables expressions and scripts see for a CAS view.
// annotations maps each annotation type to its annotations as plain maps.
func (n *casUtils) GetEnv(cas types.CAS) map[string]interface{} {
	annotations := make(map[string][]map[string]interface{})
	for _, a := range cas.Annotations("") {
		annotations[a.Type] = append(annotations[a.Type], AnnotationToMap(a))
	}
	return map[string]interface{}{
		IdKey:          cas.Id(),
		TextKey:        cas.DocumentText(),
		LanguageKey:    cas.DocumentLanguage(),
		ViewKey:        cas.ViewName(),
		AnnotationsKey: annotations,
	}
}

// AnnotationToMap converts an annotation to the map shape scripts work with
func AnnotationToMap(a types.Annotation) map[string]interface{} {
	m := map[string]interface{}{
		"type":  a.Type,
		"begin": a.Begin,
		"end":   a.End,
	}
	if len(a.Features) > 0 {
		m["features"] = a.Features
	}
	return m
}
