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

package resolver

import (
	"fmt"

	"github.com/rulego/casflow/api/types"
)

// ValidateKeys checks that the flow controller key does not collide with a
// delegate key and that flow constraints only name declared delegates.
func ValidateKeys(spec *types.AggregateSpecifier) error {
	if fc := spec.FlowController; fc != nil {
		if _, ok := spec.Delegates[fc.Key]; ok {
			return fmt.Errorf("%w: %s is both a delegate and the flow controller of %s", types.ErrDuplicateKey, fc.Key, aggregateName(spec))
		}
	}
	if fc := spec.FlowConstraints; fc != nil {
		seen := make(map[string]struct{}, len(fc.Order))
		for _, key := range fc.Order {
			if _, ok := spec.Delegates[key]; !ok {
				return fmt.Errorf("%w: flow constraints of %s name %s", types.ErrUndefinedKey, aggregateName(spec), key)
			}
			if _, ok := seen[key]; ok {
				return fmt.Errorf("%w: %s appears twice in the flow constraints of %s", types.ErrDuplicateKey, key, aggregateName(spec))
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

type compoundKey struct {
	componentKey string
	sofa         string
}

func viewOrDefault(name string) string {
	if name == "" {
		return types.DefaultView
	}
	return name
}

// sofaMap builds (componentKey, componentSofa) -> aggregateSofa from the
// declared mappings, rejecting two different targets for one pair.
func sofaMap(spec *types.AggregateSpecifier) (map[compoundKey]string, error) {
	result := make(map[compoundKey]string, len(spec.SofaMappings))
	for _, m := range spec.SofaMappings {
		if _, ok := spec.Delegates[m.ComponentKey]; !ok {
			return nil, fmt.Errorf("%w: sofa mapping of %s names %s", types.ErrUndefinedKey, aggregateName(spec), m.ComponentKey)
		}
		key := compoundKey{componentKey: m.ComponentKey, sofa: viewOrDefault(m.ComponentSofaName)}
		target := viewOrDefault(m.AggregateSofaName)
		if previous, ok := result[key]; ok && previous != target {
			return nil, fmt.Errorf("%w: %s.%s maps to both %s and %s", types.ErrSofaMappingConflict,
				key.componentKey, key.sofa, previous, target)
		}
		result[key] = target
	}
	return result, nil
}

// ComponentSofaMappings returns componentSofa -> aggregateSofa for one delegate
func ComponentSofaMappings(spec *types.AggregateSpecifier, componentKey string) map[string]string {
	result := make(map[string]string)
	for _, m := range spec.SofaMappings {
		if m.ComponentKey == componentKey {
			result[viewOrDefault(m.ComponentSofaName)] = viewOrDefault(m.AggregateSofaName)
		}
	}
	return result
}

// ValidateSofaMappings checks the sofa mappings of an aggregate against the
// views its delegates declare:
//   - every component output view maps to an aggregate output view
//   - every component input view is an aggregate input or some component's output
//   - every aggregate output view is produced by some component
//   - every aggregate input view is read by some component
//
// Opaque delegates are skipped, and when one is present the last two checks
// are not made. The default view is always available and needs no declaration.
func ValidateSofaMappings(spec *types.AggregateSpecifier) error {
	mappings, err := sofaMap(spec)
	if err != nil {
		return err
	}
	mapped := func(key, sofa string) string {
		sofa = viewOrDefault(sofa)
		if target, ok := mappings[compoundKey{componentKey: key, sofa: sofa}]; ok {
			return target
		}
		return sofa
	}
	aggregateInputs := toSet(spec.InputSofas())
	aggregateOutputs := toSet(spec.OutputSofas())
	producedViews := make(map[string]struct{})
	consumedViews := make(map[string]struct{})
	hasOpaque := false
	keys := sortedKeys(spec.Delegates)

	for _, key := range keys {
		md := inspectable(spec.Delegates[key])
		if md == nil {
			hasOpaque = true
			continue
		}
		for _, out := range md.OutputSofas() {
			target := mapped(key, out)
			producedViews[target] = struct{}{}
			if target == types.DefaultView {
				continue
			}
			if _, ok := aggregateOutputs[target]; !ok {
				return fmt.Errorf("%w: %s.%s -> %s in %s", types.ErrSofaOutputNotMapped, key, viewOrDefault(out), target, aggregateName(spec))
			}
		}
	}
	for _, key := range keys {
		md := inspectable(spec.Delegates[key])
		if md == nil {
			continue
		}
		if len(md.InputSofas()) == 0 && len(md.OutputSofas()) == 0 {
			// a component without declared views reads its (possibly remapped) default view
			consumedViews[mapped(key, types.DefaultView)] = struct{}{}
		}
		for _, in := range md.InputSofas() {
			target := mapped(key, in)
			consumedViews[target] = struct{}{}
			if target == types.DefaultView {
				continue
			}
			_, isInput := aggregateInputs[target]
			_, isProduced := producedViews[target]
			if !isInput && !isProduced {
				return fmt.Errorf("%w: %s.%s -> %s in %s", types.ErrSofaInputNotSatisfied, key, viewOrDefault(in), target, aggregateName(spec))
			}
		}
	}
	if hasOpaque {
		return nil
	}
	for _, out := range spec.OutputSofas() {
		if _, ok := producedViews[out]; !ok {
			return fmt.Errorf("%w: %s in %s", types.ErrAggregateOutputSofaNotSourced, out, aggregateName(spec))
		}
	}
	for _, in := range spec.InputSofas() {
		if _, ok := consumedViews[in]; !ok {
			return fmt.Errorf("%w: %s in %s", types.ErrAggregateInputSofaNotConsumed, in, aggregateName(spec))
		}
	}
	return nil
}

// inspectable returns the metadata of a delegate whose views can be checked, nil otherwise
func inspectable(entry *types.Delegate) *types.ComponentMetadata {
	if entry == nil || entry.Specifier == nil || entry.Specifier.Kind() == types.KindOpaque {
		return nil
	}
	return entry.Specifier.Metadata()
}

func toSet(values []string) map[string]struct{} {
	result := make(map[string]struct{}, len(values))
	for _, v := range values {
		result[v] = struct{}{}
	}
	return result
}
