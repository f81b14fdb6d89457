/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every ValidationErrors value.
var ErrValidation = errors.New("validation failed")

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors. The zero value is ready to use.
type ValidationErrors []FieldError

// Add records a field error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Merge records another set of errors under a field prefix.
func (v *ValidationErrors) Merge(prefix string, err error) {
	var other ValidationErrors
	if !errors.As(err, &other) {
		return
	}

	for _, fe := range other {
		v.Add(prefix+"."+fe.Field, fe.Message)
	}
}

// OrNil returns nil when no errors were recorded.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}

	return v
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field, fe.Message))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}
