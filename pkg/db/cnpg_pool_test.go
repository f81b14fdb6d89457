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

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/models"
)

func parseConnString(t *testing.T, cfg *models.CNPGDatabase) *url.URL {
	t.Helper()

	dsn, err := connString(cfg)
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)

	return u
}

func TestConnStringDefaults(t *testing.T) {
	t.Parallel()

	u := parseConnString(t, &models.CNPGDatabase{Host: "timescale", Database: "pulse", Username: "pulse", Password: "s3cret"})

	assert.Equal(t, "timescale:5432", u.Host)
	assert.Equal(t, "/pulse", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	pw, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "s3cret", pw)
}

func TestConnStringCarriesRuntimeParams(t *testing.T) {
	t.Parallel()

	u := parseConnString(t, &models.CNPGDatabase{
		Host:               "timescale",
		Port:               6432,
		Database:           "pulse",
		ApplicationName:    "pulse-worker",
		ExtraRuntimeParams: map[string]string{"search_path": "public", "": "ignored"},
	})

	assert.Equal(t, "timescale:6432", u.Host)
	assert.Equal(t, "pulse-worker", u.Query().Get("application_name"))
	assert.Equal(t, "public", u.Query().Get("search_path"))
}

func TestResolveSSLMode(t *testing.T) {
	t.Parallel()

	tlsCfg := &models.TLSConfig{CertFile: "client.crt", KeyFile: "client.key", CAFile: "ca.crt"}

	tests := []struct {
		name    string
		cfg     models.CNPGDatabase
		want    string
		wantErr error
	}{
		{name: "plain", cfg: models.CNPGDatabase{}, want: "disable"},
		{name: "tls defaults to verify-full", cfg: models.CNPGDatabase{TLS: tlsCfg}, want: "verify-full"},
		{name: "explicit mode lowercased", cfg: models.CNPGDatabase{SSLMode: "Require"}, want: "require"},
		{name: "runtime param fallback", cfg: models.CNPGDatabase{ExtraRuntimeParams: map[string]string{"sslmode": "Verify-CA"}}, want: "verify-ca"},
		{name: "tls with disable", cfg: models.CNPGDatabase{SSLMode: "disable", TLS: tlsCfg}, wantErr: ErrCNPGTLSDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveSSLMode(&tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCNPGTLSConfigRequiresAllFiles(t *testing.T) {
	t.Parallel()

	cfg, err := buildCNPGTLSConfig(&models.CNPGDatabase{})
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = buildCNPGTLSConfig(&models.CNPGDatabase{TLS: &models.TLSConfig{CertFile: "c", KeyFile: "k"}})
	require.ErrorIs(t, err, ErrCNPGLackingTLSFiles)
}

func TestNewCNPGPoolRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCNPGPool(t.Context(), nil, nil)
	require.ErrorIs(t, err, ErrCNPGConfigRequired)
}
