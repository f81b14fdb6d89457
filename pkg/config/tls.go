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

package config

import (
	"path/filepath"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

// normalizeSecurityPaths resolves relative PEM paths against their cert dir.
func normalizeSecurityPaths(cfg *Config, log logger.Logger) {
	if sec := cfg.NATS.Security; sec != nil {
		normalizeTLSPaths(&sec.TLS, sec.CertDir, log)
	}

	if cfg.Database.TLS != nil {
		normalizeTLSPaths(cfg.Database.TLS, cfg.Database.CertDir, log)
	}
}

func normalizeTLSPaths(tls *models.TLSConfig, certDir string, log logger.Logger) {
	if certDir == "" {
		return
	}

	for _, p := range []*string{&tls.CertFile, &tls.KeyFile, &tls.CAFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(certDir, *p)
		}
	}

	log.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Msg("Normalized TLS paths")
}
