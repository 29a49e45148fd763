// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"fmt"
	"reflect"
)

// InvalidConfigError is returned when Load receives something other than
// a pointer to a struct.
type InvalidConfigError struct {
	Value reflect.Type
}

func (e *InvalidConfigError) Error() string {
	if e.Value.Kind() != reflect.Ptr {
		return fmt.Sprintf("config: target must be a pointer to struct, got %s", e.Value.Kind())
	}
	return fmt.Sprintf("config: target must be a pointer to struct, got pointer to %s", e.Value.Elem().Kind())
}

// FieldError is returned when an environment value cannot be converted to
// the type of its struct field. It wraps the conversion error.
type FieldError struct {
	FieldName string
	EnvVar    string
	Value     string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: error setting field %s from env %s=%s: %v",
		e.FieldName, e.EnvVar, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError is returned for struct field types the loader
// cannot populate from a string.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("config: unsupported type %s", e.Type)
}

// ValidationError aggregates the rule failures found by Validate.
type ValidationError struct {
	Failures []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: validation failed: %v", e.Failures)
}
