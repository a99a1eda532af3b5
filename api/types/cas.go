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

// DefaultView is the name of the view every CAS starts with.
// DefaultView 每个CAS创建时自带的默认视图名称
const DefaultView = "_InitialView"

// LanguageUnspecified is the document language used when none was set.
const LanguageUnspecified = "x-unspecified"

// CAS interface levels a component or flow controller may require.
const (
	// CasInterfaceCAS raw structure access
	CasInterfaceCAS = "CAS"
	// CasInterfaceJCas typed wrapper access
	CasInterfaceJCas = "JCas"
)

// AbstractCas is the common base of every CAS abstraction handed to components.
// AbstractCas 交给组件的各种CAS抽象的公共接口
type AbstractCas interface {
	// Release returns the CAS to the pool it was taken from.
	// Releasing a CAS twice has no effect.
	Release()
}

// Annotation is a typed span over the document text of a view.
type Annotation struct {
	// Type is the annotation type name, e.g. `Token`
	Type string `json:"type"`
	// Begin offset, inclusive
	Begin int `json:"begin"`
	// End offset, exclusive
	End int `json:"end"`
	// Features holds feature values keyed by feature short name
	Features map[string]interface{} `json:"features,omitempty"`
}

// ComponentInfo is per-component bookkeeping attached to a CAS while a
// delegate is processing it.
type ComponentInfo struct {
	// Key of the delegate currently processing the CAS
	Key string
	// SofaMappings maps component view names onto aggregate view names
	SofaMappings map[string]string
}

// MapView maps a component view name onto the view name of the enclosing aggregate.
func (c *ComponentInfo) MapView(componentView string) string {
	if componentView == "" {
		componentView = DefaultView
	}
	if c != nil && c.SofaMappings != nil {
		if v, ok := c.SofaMappings[componentView]; ok {
			return v
		}
	}
	return componentView
}

// CAS is the shared analysis structure passed between components.
// A CAS value is bound to one view; all views of a CAS share the same base.
//
// CAS 组件之间传递的共享分析结构。
// 每个CAS值绑定到一个视图，同一个CAS的所有视图共享同一个底层结构。
type CAS interface {
	AbstractCas
	// Id identifier shared by all views of the CAS
	Id() string
	// ViewName name of the view this value is bound to
	ViewName() string
	// View returns the named view, mapped through the current component info
	View(name string) (CAS, error)
	// CreateView creates a new named view
	CreateView(name string) (CAS, error)
	// ViewNames names of all views
	ViewNames() []string
	// BaseCas returns the view-independent base
	BaseCas() CAS
	DocumentText() string
	SetDocumentText(text string)
	// DocumentLanguage returns LanguageUnspecified when no language was set
	DocumentLanguage() string
	SetDocumentLanguage(language string)
	// AddAnnotation adds an annotation to this view
	AddAnnotation(annotation Annotation)
	// Annotations returns the annotations of the given type, all when typeName is empty
	Annotations(typeName string) []Annotation
	// CurrentComponent per-component bookkeeping, nil outside delegate processing
	CurrentComponent() *ComponentInfo
	// SetCurrentComponent sets or clears the per-component bookkeeping
	SetCurrentComponent(info *ComponentInfo)
}

// JCas is the typed CAS abstraction.
// JCas 类型化的CAS抽象
type JCas interface {
	AbstractCas
	// Cas returns the underlying raw CAS
	Cas() CAS
	DocumentText() string
	DocumentLanguage() string
	// Select returns annotations of the given type
	Select(typeName string) []Annotation
	// Add adds a new annotation and returns it
	Add(typeName string, begin, end int, features map[string]interface{}) Annotation
	// CoveredText returns the text spanned by the annotation
	CoveredText(annotation Annotation) string
}

// CasPool hands out empty CASes and takes them back on release.
type CasPool interface {
	// EmptyCas returns an empty CAS
	EmptyCas() (CAS, error)
}

// CasOf returns the raw CAS behind any supported CAS abstraction.
func CasOf(cas AbstractCas) (CAS, bool) {
	switch v := cas.(type) {
	case CAS:
		return v, true
	case JCas:
		return v.Cas(), true
	default:
		return nil, false
	}
}
