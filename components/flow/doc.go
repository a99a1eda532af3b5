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

// Package flow provides the flow controllers that decide, CAS by CAS, which
// delegate of an aggregate runs next:
//
// - FixedFlowController: walks a fixed sequence of delegate keys
// - CapabilityLanguageFlowController: walks a per-language subsequence computed from declared capabilities
// - ScriptFlowController: asks a JavaScript function for the next delegate
//
// Each controller is registered with the Registry and referenced from an
// aggregate descriptor by its Type. For example:
//
//	flowController:
//	  key: fc
//	  implementation: fixedFlow
//	  configuration:
//	    actionAfterCasMultiplier: continue
package flow

import "github.com/rulego/casflow/api/types"

// Registry flow controllers of this package
var Registry = &types.SafeComponentSlice{}
