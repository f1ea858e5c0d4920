// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpc exposes the coordinator's GetDiagnostics operation as an MCP
// tool, so any MCP-speaking client (an editor, an agent harness) can drive
// the coordinator. Serve runs it over stdio.
//
// Grounded on gopls/internal/mcp/mcp.go's handler/newServer/AddTools shape
// and gopls/internal/mcp/file_diagnostics.go's single-tool handler pattern,
// adapted to github.com/modelcontextprotocol/go-sdk/mcp (the real SDK the
// teacher's own internal/mcp predates) the way Sumatoshi-tech-codefang's
// pkg/mcp/server.go and tools.go use it: typed input structs decoded by
// mcpsdk.AddTool's generic handler, jsonResult/errorResult helpers.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/analyzerset"
	"github.com/rdiagd/rdiag/internal/coordinator"
	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter"
)

const (
	toolName        = "get_diagnostics"
	toolDescription = "Run static analysis diagnostics for a project or a single document within it, " +
		"using the coordinator's cached analysis context and two-class priority scheduler."
)

// ProjectSource turns a directory path into the ProjectHandle/SnapshotID
// pair the coordinator needs. It stands in for the richer workspace/session
// model a real host environment would own (see gopls/internal/cache.Session
// for the teacher's version); this module's concern stops at the
// coordinator boundary, so one fixed analyzer registry per process is
// sufficient to exercise it end to end.
type ProjectSource struct {
	Host      hostadapter.Host
	Analyzers []*analysis.Analyzer
}

// NewProjectSource returns a ProjectSource that resolves every directory
// against host using a single fixed analyzer registry.
func NewProjectSource(host hostadapter.Host, analyzers []*analysis.Analyzer) *ProjectSource {
	return &ProjectSource{Host: host, Analyzers: analyzers}
}

// Resolve builds a fresh ProjectHandle for dir. The SnapshotID and
// ProjectID are both the directory path: a real snapshot identifier would
// be content-addressed (spec.md §3), but directory identity is enough for
// this module's own workspace model, and repeat document-scoped calls for
// the same dir still hit the coordinator's cache via snapshot
// reconciliation (whole-project calls never use the cache), since
// Reconcile matches on (SnapshotID, ProjectID) before checking handle
// identity.
func (s *ProjectSource) Resolve(dir string) (coordkey.SnapshotID, coordkey.ProjectHandle) {
	pid := coordkey.ProjectID(dir)
	project := coordkey.ProjectHandle{
		ID:       pid,
		Language: "go",
		Refs:     []coordkey.AnalyzerReference{coordkey.NewAnalyzerReference("default", s.Analyzers)},
		GetCompilation: func(ctx context.Context) (*coordkey.Compilation, error) {
			return s.Host.GetCompilation(ctx, coordkey.ProjectHandle{ID: pid})
		},
	}.WithNewIdentity()
	return coordkey.SnapshotID(dir), project
}

// Handler implements the get_diagnostics MCP tool.
type Handler struct {
	Coordinator *coordinator.Coordinator
	Projects    *ProjectSource
}

// NewHandler returns a Handler bound to coord and projects.
func NewHandler(coord *coordinator.Coordinator, projects *ProjectSource) *Handler {
	return &Handler{Coordinator: coord, Projects: projects}
}

// Tool returns the MCP tool descriptor for this handler.
func (h *Handler) Tool() *mcpsdk.Tool {
	return &mcpsdk.Tool{Name: toolName, Description: toolDescription}
}

type diagnosticsInput struct {
	Dir              string   `json:"dir" jsonschema:"absolute path to the project root"`
	File             string   `json:"file,omitempty" jsonschema:"absolute path to a single document to scope the request to; the whole project when omitted"`
	AnalyzerIDs      []string `json:"analyzer_ids,omitempty" jsonschema:"analyzer ids to run; every known analyzer when omitted"`
	Priority         string   `json:"priority,omitempty" jsonschema:"normal or high (default normal)"`
	ReportSuppressed bool     `json:"report_suppressed,omitempty" jsonschema:"include diagnostics the host marks suppressed"`
	WantTelemetry    bool     `json:"want_telemetry,omitempty" jsonschema:"include per-analyzer telemetry in the response"`
}

type diagnosticsOutput struct {
	PerAnalyzer []coordkey.PerAnalyzerResult   `json:"per_analyzer"`
	Telemetry   []coordkey.PerAnalyzerTelemetry `json:"telemetry,omitempty"`
}

// Diagnostics is the tool handler registered with mcpsdk.AddTool.
func (h *Handler) Diagnostics(ctx context.Context, req *mcpsdk.CallToolRequest, input diagnosticsInput) (*mcpsdk.CallToolResult, diagnosticsOutput, error) {
	if input.Dir == "" {
		return errorResult(errors.New("dir is required"))
	}

	snapshot, project := h.Projects.Resolve(input.Dir)

	var document *coordkey.DocumentID
	if input.File != "" {
		d := coordkey.DocumentID(input.File)
		document = &d
	}

	idMap, _ := analyzerset.Build(project)
	var analyzerIDs []coordkey.AnalyzerID
	if len(input.AnalyzerIDs) == 0 {
		analyzerIDs = idMap.Ordered()
	} else {
		analyzerIDs = make([]coordkey.AnalyzerID, len(input.AnalyzerIDs))
		for i, s := range input.AnalyzerIDs {
			analyzerIDs[i] = coordkey.AnalyzerID(s)
		}
	}

	request := coordkey.Request{
		Snapshot:         snapshot,
		Project:          project,
		Document:         document,
		AnalyzerIDs:      analyzerIDs,
		Priority:         parsePriority(input.Priority),
		ReportSuppressed: input.ReportSuppressed,
		WantTelemetry:    input.WantTelemetry,
	}

	result, err := h.Coordinator.GetDiagnostics(ctx, request)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(diagnosticsOutput{PerAnalyzer: result.PerAnalyzer, Telemetry: result.Telemetry})
}

func parsePriority(s string) coordkey.Priority {
	if s == "high" {
		return coordkey.PriorityHigh
	}
	return coordkey.PriorityNormal
}

func errorResult(err error) (*mcpsdk.CallToolResult, diagnosticsOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, diagnosticsOutput{}, nil
}

func jsonResult(output diagnosticsOutput) (*mcpsdk.CallToolResult, diagnosticsOutput, error) {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, output, nil
}

// NewServer builds an MCP server named "rdiagd" exposing h's
// get_diagnostics tool.
func NewServer(h *Handler) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "rdiagd", Version: "0.1.0"}, nil)
	mcpsdk.AddTool(srv, h.Tool(), h.Diagnostics)
	return srv
}

// Serve runs h's MCP server over stdio until ctx is cancelled or the
// client disconnects.
func Serve(ctx context.Context, h *Handler) error {
	srv := NewServer(h)
	if err := srv.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("rpc: mcp server: %w", err)
	}
	return nil
}
