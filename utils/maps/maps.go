/*
 * Copyright 2023 The RuleGo Authors.
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

// Package maps decodes component configuration maps into typed structs.
package maps

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Map2Struct Decode takes an input structure and uses reflection to translate it to
// the output structure. output must be a pointer to a map or struct.
// Strings are converted to time.Duration, e.g. "5s".
func Map2Struct(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Decode applies `default` struct tags to output, overlays input and runs
// `validate` struct tags on the result.
// 先设置默认值，再覆盖配置，最后校验
func Decode(input interface{}, output interface{}) error {
	if err := defaults.Set(output); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}
	if input != nil {
		if err := Map2Struct(input, output); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
	}
	return Validate(output)
}

// Validate runs `validate` struct tags and formats the failures
func Validate(config interface{}) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldErr := range validationErrors {
			messages = append(messages, fmt.Sprintf("field '%s' failed validation (rule: %s, value: %v)",
				fieldErr.Field(), fieldErr.Tag(), fieldErr.Value()))
		}
		return fmt.Errorf("configuration validation failed: %s", strings.Join(messages, "; "))
	}
	return fmt.Errorf("configuration validation failed: %w", err)
}
