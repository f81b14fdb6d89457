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

package query

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultWindow applies when a window expression is missing or malformed.
const DefaultWindow = time.Hour

var windowPattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// ParseWindow reads "30m", "1h" or "7d". Anything else is DefaultWindow.
func ParseWindow(expr string) time.Duration {
	m := windowPattern.FindStringSubmatch(expr)
	if m == nil {
		return DefaultWindow
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultWindow
	}

	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	}

	return time.Duration(n) * 24 * time.Hour
}

// Since resolves a window expression against now.
func Since(expr string, now time.Time) time.Time {
	return now.Add(-ParseWindow(expr))
}
