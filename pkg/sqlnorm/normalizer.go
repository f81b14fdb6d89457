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

// Package sqlnorm reduces SQL statements to parameterized patterns and short fingerprints so that
// queries differing only in literals group together.
package sqlnorm

import (
	"crypto/md5" //nolint:gosec // fingerprint, not a security boundary
	"encoding/hex"
	"regexp"
	"strings"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

// Replacement order matters: UUIDs before numbers, literals before the IN collapse.
var (
	uuidPattern         = regexp.MustCompile(`(?i)[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
	singleQuotedPattern = regexp.MustCompile(`'[^']*'`)
	doubleQuotedPattern = regexp.MustCompile(`"[^"]*"`)
	numberPattern       = regexp.MustCompile(`\b\d+\.?\d*\b`)
	inListPattern       = regexp.MustCompile(`(?i)IN\s*\(\s*\?(?:\s*,\s*\?)*\s*\)`)
	whitespacePattern   = regexp.MustCompile(`\s+`)

	tablePattern = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE|JOIN)\s+["` + "`" + `]?([A-Za-z_][A-Za-z0-9_.]*)`)
)

// Normalize returns the canonical pattern of sql. ok is false for blank input.
func Normalize(sql string) (normalized string, ok bool) {
	if strings.TrimSpace(sql) == "" {
		return "", false
	}

	normalized = uuidPattern.ReplaceAllString(sql, "?")
	normalized = singleQuotedPattern.ReplaceAllString(normalized, "?")
	normalized = doubleQuotedPattern.ReplaceAllString(normalized, "?")
	normalized = numberPattern.ReplaceAllString(normalized, "?")
	normalized = inListPattern.ReplaceAllString(normalized, "IN (?)")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized), true
}

// Fingerprint returns the first 16 hex characters of the MD5 of the normalized statement.
func Fingerprint(sql string) (string, bool) {
	normalized, ok := Normalize(sql)
	if !ok {
		return "", false
	}

	return FingerprintNormalized(normalized), true
}

// FingerprintNormalized hashes an already normalized statement.
func FingerprintNormalized(normalized string) string {
	sum := md5.Sum([]byte(normalized)) //nolint:gosec // see import

	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// Operation returns the leading SQL verb in upper case, or "" when there is none.
func Operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}

	verb := strings.ToUpper(strings.TrimLeft(fields[0], "("))

	switch verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "SHOW", "SET":
		return verb
	}

	return ""
}

// Table returns the first table referenced after FROM, INTO, UPDATE or JOIN.
func Table(sql string) string {
	m := tablePattern.FindStringSubmatch(sql)
	if len(m) < 2 {
		return ""
	}

	return strings.Trim(m[1], "\"`")
}
