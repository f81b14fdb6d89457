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

package mcp

import (
	"encoding/json"
	"net/http"

	phttp "github.com/carverauto/pulse/pkg/http"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

const jsonRPCVersion = "2.0"

// MCPRequest is a JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"params"`
}

// MCPResponse is a JSON-RPC response.
type MCPResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TextContent is one content block of a tools/call result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m *MCPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req MCPRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxArgumentBytes)).Decode(&req); err != nil {
		m.writeRPCError(w, nil, http.StatusBadRequest, CodeParseError, "Parse error")
		return
	}

	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	switch req.Method {
	case "tools/list":
		m.writeJSON(w, http.StatusOK, MCPResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Result:  map[string]interface{}{"tools": m.ListTools()},
		})
	case "tools/call":
		project, ok := phttp.ProjectFromContext(r.Context())
		if !ok {
			m.writeRPCError(w, id, http.StatusUnauthorized, CodeInternalError, errNoProject.Error())
			return
		}

		result, err := m.CallTool(r.Context(), project, req.Params.Name, req.Params.Arguments)
		if err != nil {
			m.writeRPCError(w, id, http.StatusInternalServerError, CodeInternalError, err.Error())
			return
		}

		text, err := json.Marshal(result)
		if err != nil {
			m.writeRPCError(w, id, http.StatusInternalServerError, CodeInternalError, err.Error())
			return
		}

		m.writeJSON(w, http.StatusOK, MCPResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Result: map[string]interface{}{
				"content": []TextContent{{Type: "text", Text: string(text)}},
			},
		})
	default:
		m.writeRPCError(w, id, http.StatusNotFound, CodeMethodNotFound, "Method not found")
	}
}

func (m *MCPServer) writeRPCError(w http.ResponseWriter, id json.RawMessage, status, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	m.writeJSON(w, status, MCPResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	})
}
