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

// Package resolver turns aggregate specifiers whose delegates may be imports
// into fully resolved specifier trees, and validates component keys and
// sofa mappings before any engine is built.
//
// Package resolver 解析聚合描述符中的导入，校验组件Key和视图映射
package resolver

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/rulego/casflow/api/types"
)

// Resolver resolves imports through a ResourceManager.
// Resolution is idempotent: an import that is unchanged since it was last
// resolved is not parsed again, and records of removed keys are pruned.
type Resolver struct {
	ResourceManager types.ResourceManager
	Logger          types.Logger
}

// New creates a resolver, logger may be nil
func New(rm types.ResourceManager, logger types.Logger) *Resolver {
	if logger == nil {
		logger = types.DiscardLogger{}
	}
	return &Resolver{ResourceManager: rm, Logger: logger}
}

// Resolve resolves imports with a resolver that does not log
func Resolve(spec *types.AggregateSpecifier, rm types.ResourceManager, enclosing ...*url.URL) (map[string]types.ComponentSpecifier, error) {
	return New(rm, nil).Resolve(spec, enclosing...)
}

// Resolve resolves every delegate import and the flow controller import of
// spec, recursing into nested aggregates, and returns key -> specifier.
// enclosing holds the URLs of the aggregates that import spec; an import of
// any of them, or of spec itself, is a circular import.
func (r *Resolver) Resolve(spec *types.AggregateSpecifier, enclosing ...*url.URL) (map[string]types.ComponentSpecifier, error) {
	visited := make(map[string]struct{}, len(enclosing)+1)
	for _, u := range enclosing {
		if u != nil {
			visited[u.String()] = struct{}{}
		}
	}
	if u := spec.SourceUrl(); u != nil {
		visited[u.String()] = struct{}{}
	}
	if err := r.resolveAggregate(spec, visited); err != nil {
		return nil, err
	}
	return spec.DelegateSpecifiers(), nil
}

func (r *Resolver) resolveAggregate(spec *types.AggregateSpecifier, visited map[string]struct{}) error {
	processed := spec.ProcessedImports()
	for _, key := range sortedKeys(spec.Delegates) {
		entry := spec.Delegates[key]
		if entry == nil {
			return fmt.Errorf("%w: delegate %s of %s is empty", types.ErrUndefinedKey, key, aggregateName(spec))
		}
		if entry.Import == nil {
			// inline entry: a record left from an earlier import is stale
			delete(processed, key)
			if entry.Specifier == nil {
				return fmt.Errorf("%w: delegate %s of %s has neither import nor specifier", types.ErrUndefinedKey, key, aggregateName(spec))
			}
			if nested, ok := entry.Specifier.(*types.AggregateSpecifier); ok {
				if nested.SourceUrl() == nil {
					nested.SetSourceUrl(spec.SourceUrl())
				}
				if err := r.resolveAggregate(nested, visited); err != nil {
					return err
				}
			}
			continue
		}
		if previous, ok := processed[key]; ok && previous == *entry.Import && entry.Specifier != nil {
			continue
		}
		location, err := r.importUrl(spec, *entry.Import)
		if err != nil {
			return err
		}
		if _, ok := visited[location.String()]; ok {
			return fmt.Errorf("%w: aggregate %s imports %s", types.ErrCircularImport, aggregateName(spec), location)
		}
		parsed, err := r.ResourceManager.ParseSpecifier(location)
		if err != nil {
			return fmt.Errorf("%w: %s (key %s): %w", types.ErrImportNotResolvable, location, key, err)
		}
		if parsed.SourceUrl() == nil {
			parsed.SetSourceUrl(location)
		}
		r.Logger.Printf("resolved import %s for delegate %s of %s", location, key, aggregateName(spec))
		entry.Specifier = parsed
		processed[key] = *entry.Import
		if nested, ok := parsed.(*types.AggregateSpecifier); ok {
			if err := r.resolveAggregate(nested, with(visited, location)); err != nil {
				return err
			}
		}
	}
	if err := r.resolveFlowController(spec, processed, visited); err != nil {
		return err
	}
	r.pruneStale(spec, processed)
	return nil
}

func (r *Resolver) resolveFlowController(spec *types.AggregateSpecifier, processed map[string]types.Import, visited map[string]struct{}) error {
	decl := spec.FlowController
	if decl == nil || decl.Import == nil {
		return nil
	}
	if previous, ok := processed[decl.Key]; ok && previous == *decl.Import && decl.Specifier != nil {
		return nil
	}
	location, err := r.importUrl(spec, *decl.Import)
	if err != nil {
		return err
	}
	if _, ok := visited[location.String()]; ok {
		return fmt.Errorf("%w: aggregate %s imports %s", types.ErrCircularImport, aggregateName(spec), location)
	}
	parsed, err := r.ResourceManager.ParseFlowControllerSpecifier(location)
	if err != nil {
		return fmt.Errorf("%w: %s (flow controller %s): %w", types.ErrImportNotResolvable, location, decl.Key, err)
	}
	r.Logger.Printf("resolved flow controller import %s of %s", location, aggregateName(spec))
	decl.Specifier = parsed
	processed[decl.Key] = *decl.Import
	return nil
}

// pruneStale drops processed-import records whose key no longer declares an import
func (r *Resolver) pruneStale(spec *types.AggregateSpecifier, processed map[string]types.Import) {
	for key := range processed {
		if entry, ok := spec.Delegates[key]; ok && entry != nil && entry.Import != nil {
			continue
		}
		if fc := spec.FlowController; fc != nil && fc.Key == key && fc.Import != nil {
			continue
		}
		delete(processed, key)
	}
}

// importUrl resolves the import target relative to the declaring aggregate
func (r *Resolver) importUrl(spec *types.AggregateSpecifier, imp types.Import) (*url.URL, error) {
	if imp.Location != "" {
		ref, err := url.Parse(imp.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrImportNotResolvable, imp.Location, err)
		}
		if base := spec.SourceUrl(); base != nil {
			return base.ResolveReference(ref), nil
		}
		return ref, nil
	}
	if imp.Name == "" {
		return nil, fmt.Errorf("%w: import of %s has neither location nor name", types.ErrImportNotResolvable, aggregateName(spec))
	}
	location, err := r.ResourceManager.ResolveName(imp.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrImportNotResolvable, imp.Name, err)
	}
	return location, nil
}

func with(visited map[string]struct{}, location *url.URL) map[string]struct{} {
	extended := make(map[string]struct{}, len(visited)+1)
	for k := range visited {
		extended[k] = struct{}{}
	}
	extended[location.String()] = struct{}{}
	return extended
}

func aggregateName(spec *types.AggregateSpecifier) string {
	if spec.Name != "" {
		return spec.Name
	}
	if u := spec.SourceUrl(); u != nil {
		return u.String()
	}
	return "<inline>"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
