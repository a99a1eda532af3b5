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
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/maps"
)

func init() {
	Registry.Add(&CapabilityLanguageFlowController{})
}

// CapabilityLanguageFlowConfiguration 能力/语言流程配置
type CapabilityLanguageFlowConfiguration struct {
	// ContinueOnFailureKeys keys whose failures do not stop the CAS, `*` matches every key
	ContinueOnFailureKeys []string
	// Order overrides the order of the flow constraints
	Order []string
}

// flowTableEntry one delegate of a language sequence and the outputs it is asked for
type flowTableEntry struct {
	Key string
	// ResultSpec nil when the aggregate declares no outputs
	ResultSpec *types.ResultSpecification
}

type capabilityState struct {
	order []string
	table map[string][]flowTableEntry
}

// CapabilityLanguageFlowController routes a CAS only through the delegates
// needed to produce the outputs the aggregate declares for the document
// language. The sequence of each language is computed once, at Init and when
// delegates are added or removed:
// walking the delegate order, a delegate is kept when it produces an output
// that no earlier delegate produces, and it is handed a result specification
// naming just those outputs.
//
// The document language selects its own sequence, then the sequence of its
// primary language (en-US -> en), then the x-unspecified sequence.
//
// CapabilityLanguageFlowController 根据文档语言和组件能力声明路由CAS
type CapabilityLanguageFlowController struct {
	ControllerBase
	Config  CapabilityLanguageFlowConfiguration
	state   atomic.Pointer[capabilityState]
	lock    sync.Mutex
	failure failurePolicy
}

func (x *CapabilityLanguageFlowController) Type() string {
	return "capabilityLanguageFlow"
}

func (x *CapabilityLanguageFlowController) New() types.Component {
	return &CapabilityLanguageFlowController{}
}

func (x *CapabilityLanguageFlowController) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	if err := x.InitContext(ctx); err != nil {
		return err
	}
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	order, err := x.DelegateOrder(x.Config.Order)
	if err != nil {
		return err
	}
	x.failure = newFailurePolicy(x.Config.ContinueOnFailureKeys)
	x.publish(order)
	return nil
}

func (x *CapabilityLanguageFlowController) publish(order []string) {
	x.state.Store(&capabilityState{
		order: order,
		table: computeFlowTable(order, x.Context.AggregateMetadata(), x.Context.DelegateMetadata()),
	})
}

// Sequence returns the delegate keys a CAS of the given language passes through
func (x *CapabilityLanguageFlowController) Sequence(language string) []string {
	var keys []string
	for _, entry := range lookupFlowTable(x.state.Load().table, language) {
		keys = append(keys, entry.Key)
	}
	return keys
}

func (x *CapabilityLanguageFlowController) ComputeFlow(cas types.AbstractCas) (types.Flow, error) {
	language := types.LanguageUnspecified
	if c, ok := types.CasOf(cas); ok {
		language = c.DocumentLanguage()
	}
	return &CapabilityLanguageFlow{
		controller: x,
		entries:    lookupFlowTable(x.state.Load().table, language),
	}, nil
}

func (x *CapabilityLanguageFlowController) AddAnalysisEngines(keys []string) error {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.publish(withKeys(x.state.Load().order, keys))
	return nil
}

func (x *CapabilityLanguageFlowController) RemoveAnalysisEngines(keys []string) error {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.publish(withoutKeys(x.state.Load().order, keys))
	return nil
}

// CapabilityLanguageFlow walks the sequence of one language
type CapabilityLanguageFlow struct {
	FlowBase
	controller *CapabilityLanguageFlowController
	entries    []flowTableEntry
	current    int
}

func (f *CapabilityLanguageFlow) Next() (types.Step, error) {
	if f.current >= len(f.entries) {
		return types.FinalStep{}, nil
	}
	entry := f.entries[f.current]
	f.current++
	step := types.SimpleStep{Key: entry.Key}
	if entry.ResultSpec != nil {
		step.ResultSpec = entry.ResultSpec.Copy()
	}
	return step, nil
}

// NewCasProduced continues the new CAS at the entry after the producing component
func (f *CapabilityLanguageFlow) NewCasProduced(_ types.AbstractCas, producedBy string) (types.Flow, error) {
	for i, entry := range f.entries {
		if entry.Key == producedBy {
			return &CapabilityLanguageFlow{controller: f.controller, entries: f.entries, current: i + 1}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not in the language sequence", types.ErrUnknownComponentKey, producedBy)
}

func (f *CapabilityLanguageFlow) ContinueOnFailure(failedKey string, _ error) bool {
	return f.controller.failure.continueOnFailure(failedKey)
}

// computeFlowTable builds language -> sequence
func computeFlowTable(order []string, aggregate *types.ComponentMetadata, delegates map[string]*types.ComponentMetadata) map[string][]flowTableEntry {
	languages := []string{types.LanguageUnspecified}
	languages = appendUnique(languages, declaredLanguages(aggregate)...)
	for _, key := range order {
		languages = appendUnique(languages, declaredLanguages(delegates[key])...)
	}

	table := make(map[string][]flowTableEntry, len(languages))
	if !declaresOutputs(aggregate) {
		// nothing to filter on, every delegate runs
		entries := make([]flowTableEntry, 0, len(order))
		for _, key := range order {
			entries = append(entries, flowTableEntry{Key: key})
		}
		for _, language := range languages {
			table[language] = entries
		}
		return table
	}
	for _, language := range languages {
		required := outputsFor(aggregate, language)
		var entries []flowTableEntry
		for _, key := range order {
			if len(required) == 0 {
				break
			}
			produced := outputsFor(delegates[key], language)
			var covered, remaining []string
			for _, name := range required {
				if produces(produced, name) {
					covered = append(covered, name)
				} else {
					remaining = append(remaining, name)
				}
			}
			if len(covered) == 0 {
				continue
			}
			rs := types.NewResultSpecification()
			for _, name := range covered {
				rs.Add(name)
			}
			entries = append(entries, flowTableEntry{Key: key, ResultSpec: rs})
			required = remaining
		}
		table[language] = entries
	}
	return table
}

func lookupFlowTable(table map[string][]flowTableEntry, language string) []flowTableEntry {
	language = normalizeLanguage(language)
	if entries, ok := table[language]; ok {
		return entries
	}
	if primary := primaryLanguage(language); primary != "" {
		if entries, ok := table[primary]; ok {
			return entries
		}
	}
	return table[types.LanguageUnspecified]
}

// outputsFor returns the outputs md declares for language: the capabilities
// of the exact language, or of its primary language when there are none,
// plus the capabilities declared for every language.
func outputsFor(md *types.ComponentMetadata, language string) []string {
	if md == nil {
		return nil
	}
	language = normalizeLanguage(language)
	result := capabilityOutputs(md, language)
	if len(result) == 0 {
		if primary := primaryLanguage(language); primary != "" {
			result = capabilityOutputs(md, primary)
		}
	}
	if language != types.LanguageUnspecified {
		result = appendUnique(result, capabilityOutputs(md, types.LanguageUnspecified)...)
	}
	return result
}

func capabilityOutputs(md *types.ComponentMetadata, language string) []string {
	var result []string
	for _, c := range md.Capabilities {
		for _, l := range c.LanguagesOrUnspecified() {
			if normalizeLanguage(l) == language {
				result = appendUnique(result, c.Outputs...)
				break
			}
		}
	}
	return result
}

// produces reports whether name, a type or a `Type:feature`, is among the outputs
func produces(outputs []string, name string) bool {
	if indexOf(outputs, name) >= 0 {
		return true
	}
	if i := strings.Index(name, types.FeatureSeparator); i > 0 {
		return indexOf(outputs, name[:i]) >= 0
	}
	return false
}

func declaresOutputs(md *types.ComponentMetadata) bool {
	if md == nil {
		return false
	}
	for _, c := range md.Capabilities {
		if len(c.Outputs) > 0 {
			return true
		}
	}
	return false
}

func declaredLanguages(md *types.ComponentMetadata) []string {
	if md == nil {
		return nil
	}
	var result []string
	for _, c := range md.Capabilities {
		for _, l := range c.LanguagesOrUnspecified() {
			result = appendUnique(result, normalizeLanguage(l))
		}
	}
	return result
}

func normalizeLanguage(language string) string {
	if language == "" {
		return types.LanguageUnspecified
	}
	return strings.ToLower(strings.ReplaceAll(language, "_", "-"))
}

// primaryLanguage strips one subtag, "" if there is none
func primaryLanguage(language string) string {
	if language == types.LanguageUnspecified {
		return ""
	}
	if i := strings.Index(language, "-"); i > 0 {
		return language[:i]
	}
	return ""
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if indexOf(list, v) < 0 {
			list = append(list, v)
		}
	}
	return list
}
