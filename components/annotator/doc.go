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

// Package annotator provides primitive annotators that can be referenced from
// descriptors by their type:
//
// - tokenizer: Token annotations matched by a regular expression
// - exprAnnotator: annotations added where an expr expression holds
// - jsAnnotator: annotations returned by a JavaScript function
package annotator

import "github.com/rulego/casflow/api/types"

// Registry annotators of this package
var Registry = &types.SafeComponentSlice{}
