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

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/carverauto/pulse/cmd/pulse/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("PULSE_CONFIG"), "Path to pulse config file (optional)")
	role := flag.String("role", app.RoleAll, "Process role: api, worker or all")
	flag.Parse()

	return app.Run(context.Background(), app.Options{
		ConfigPath: *configPath,
		Role:       *role,
	})
}
