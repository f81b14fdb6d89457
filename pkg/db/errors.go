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

package db

import "errors"

var (
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	ErrFailedOpenDB           = errors.New("failed to open database")
	ErrFailedToInit           = errors.New("failed to initialize schema")

	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToUpdate = errors.New("failed to update")
	ErrFailedToDelete = errors.New("failed to delete")

	// ErrNotFound is returned by single-row lookups with no match.
	ErrNotFound = errors.New("not found")

	ErrTraceOwnedElsewhere = errors.New("trace id belongs to another project")

	ErrCNPGConfigRequired  = errors.New("cnpg: database configuration is required")
	ErrCNPGLackingTLSFiles = errors.New("cnpg tls requires cert_file, key_file, and ca_file")
	ErrCNPGAppendCACert    = errors.New("cnpg tls: unable to append CA certificate")
	ErrCNPGTLSDisabled     = errors.New("cnpg tls configured but sslmode is disable")
)
