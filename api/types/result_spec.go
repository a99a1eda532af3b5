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

package types

import (
	"sort"
	"strings"
)

// FeatureSeparator separates a type name from a feature short name
const FeatureSeparator = ":"

// ResultSpecification is the set of type and feature names a component is
// asked to produce, per language.
//
// ResultSpecification 要求组件产出的类型和特征集合，按语言区分
type ResultSpecification struct {
	// name -> languages
	entries map[string]map[string]struct{}
}

// NewResultSpecification creates an empty result specification
func NewResultSpecification() *ResultSpecification {
	return &ResultSpecification{entries: make(map[string]map[string]struct{})}
}

// Add adds a type or feature name for the languages, x-unspecified if none is given
func (rs *ResultSpecification) Add(name string, languages ...string) {
	if len(languages) == 0 {
		languages = []string{LanguageUnspecified}
	}
	langs, ok := rs.entries[name]
	if !ok {
		langs = make(map[string]struct{})
		rs.entries[name] = langs
	}
	for _, l := range languages {
		langs[l] = struct{}{}
	}
}

// Remove removes a type or feature name for all languages
func (rs *ResultSpecification) Remove(name string) {
	delete(rs.entries, name)
}

// Contains reports whether the name is requested for the language. A feature
// `T:f` is also contained when its type `T` is. Names added for x-unspecified
// match every language.
func (rs *ResultSpecification) Contains(name string, language string) bool {
	if rs == nil {
		return false
	}
	if rs.containsExact(name, language) {
		return true
	}
	if idx := strings.Index(name, FeatureSeparator); idx > 0 {
		return rs.containsExact(name[:idx], language)
	}
	return false
}

func (rs *ResultSpecification) containsExact(name string, language string) bool {
	langs, ok := rs.entries[name]
	if !ok {
		return false
	}
	if _, ok := langs[LanguageUnspecified]; ok {
		return true
	}
	_, ok = langs[language]
	return ok
}

// Names all names, sorted
func (rs *ResultSpecification) Names() []string {
	if rs == nil {
		return nil
	}
	var names []string
	for k := range rs.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether no name is requested
func (rs *ResultSpecification) IsEmpty() bool {
	return rs == nil || len(rs.entries) == 0
}

// Copy returns a deep copy
func (rs *ResultSpecification) Copy() *ResultSpecification {
	c := NewResultSpecification()
	if rs == nil {
		return c
	}
	for name, langs := range rs.entries {
		for l := range langs {
			c.Add(name, l)
		}
	}
	return c
}
