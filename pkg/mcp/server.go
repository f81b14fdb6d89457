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

// Package mcp exposes pulse read tools over the Model Context Protocol: a plain
// JSON tool API and a JSON-RPC 2.0 endpoint for MCP clients.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/core/api"
	phttp "github.com/carverauto/pulse/pkg/http"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

const maxArgumentBytes = 1 << 20

var (
	ErrUnknownTool = errors.New("unknown tool")
	errNoProject   = errors.New("request is not bound to a project")
)

// MCPServer serves the pulse tools for the project authenticated on each request.
type MCPServer struct {
	reader   api.Reader
	patterns api.PatternFinder
	logger   logger.Logger
	config   *MCPConfig
	tools    map[string]MCPTool
	now      func() time.Time
}

// MCPConfig holds configuration for the MCP server
type MCPConfig struct {
	Enabled bool `json:"enabled"`
}

// ToolHandler runs one tool against a project.
type ToolHandler func(ctx context.Context, project *models.Project, args json.RawMessage) (interface{}, error)

// MCPTool represents an MCP tool that can be called
type MCPTool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolHandler
}

// ToolInfo is the listed form of a tool.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(reader api.Reader, patterns api.PatternFinder, log logger.Logger, config *MCPConfig) *MCPServer {
	if log == nil {
		log = logger.NewTestLogger()
	}

	if config == nil {
		config = GetDefaultConfig()
	}

	m := &MCPServer{
		reader:   reader,
		patterns: patterns,
		logger:   log,
		config:   config,
		tools:    make(map[string]MCPTool),
		now:      time.Now,
	}

	m.registerTools()

	return m
}

// GetDefaultConfig returns the default MCP configuration
func GetDefaultConfig() *MCPConfig {
	return &MCPConfig{Enabled: true}
}

// RegisterRoutes adds MCP endpoints under /mcp. router must already authenticate the project.
func (m *MCPServer) RegisterRoutes(router *mux.Router) {
	if !m.config.Enabled {
		m.logger.Info().Msg("MCP server disabled - skipping route registration")
		return
	}

	m.logger.Info().Int("tools", len(m.tools)).Msg("Registering MCP routes")

	mcpRouter := router.PathPrefix("/mcp").Subrouter()
	mcpRouter.HandleFunc("/tools", m.handleToolList).Methods(http.MethodGet)
	mcpRouter.HandleFunc("/tools/{name}", m.handleToolCall).Methods(http.MethodPost)
	mcpRouter.HandleFunc("/rpc", m.handleRPC).Methods(http.MethodPost)
}

// ListTools returns every tool sorted by name.
func (m *MCPServer) ListTools() []ToolInfo {
	out := make([]ToolInfo, 0, len(m.tools))
	for _, t := range m.tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// CallTool runs the named tool. Missing arguments behave like an empty object.
func (m *MCPServer) CallTool(ctx context.Context, project *models.Project, name string, args json.RawMessage) (interface{}, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}

	return tool.Handler(ctx, project, args)
}

// handleToolList returns the list of available MCP tools
func (m *MCPServer) handleToolList(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, map[string]interface{}{"tools": m.ListTools()})
}

// handleToolCall runs /mcp/tools/{name}; the body is the argument object.
func (m *MCPServer) handleToolCall(w http.ResponseWriter, r *http.Request) {
	project, ok := phttp.ProjectFromContext(r.Context())
	if !ok {
		m.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errNoProject.Error()})
		return
	}

	args, err := io.ReadAll(io.LimitReader(r.Body, maxArgumentBytes))
	if err != nil {
		m.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := m.CallTool(r.Context(), project, mux.Vars(r)["name"], args)
	if err != nil {
		m.logger.Warn().Err(err).Str("tool", mux.Vars(r)["name"]).Msg("MCP tool call failed")
		m.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})

		return
	}

	m.writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func (m *MCPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode MCP response")
	}
}
