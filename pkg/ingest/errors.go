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

package ingest

import "errors"

var (
	// ErrTraceNotFound is returned when spans reference a trace the project does not own.
	ErrTraceNotFound = errors.New("trace not found")
	// ErrTraceOwnedElsewhere is returned when a trace id is already used by another project.
	ErrTraceOwnedElsewhere = errors.New("trace id belongs to another project")
	ErrNoProject           = errors.New("request context has no project")
	ErrEmptyBatch          = errors.New("batch is empty")
)
