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
// Package version reports the pulse build identity. Values are injected with
// -ldflags "-X github.com/carverauto/pulse/pkg/version.version=..." at release time.
package version

import "runtime"

//nolint:gochecknoglobals // set via ldflags
var (
	version = "dev"
	buildID = "dev"
	commit  = ""
)

// Info is the JSON shape served on /health and in startup logs.
type Info struct {
	Version   string `json:"version"`
	BuildID   string `json:"build_id"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

func GetVersion() string { return version }

func GetBuildID() string { return buildID }

// GetFullVersion returns version with build ID, e.g. "1.4.0 (build: 812)".
func GetFullVersion() string {
	return version + " (build: " + buildID + ")"
}

// Get collects the build identity of the running binary.
func Get() Info {
	return Info{
		Version:   version,
		BuildID:   buildID,
		Commit:    commit,
		GoVersion: runtime.Version(),
	}
}
