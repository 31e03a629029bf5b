package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"riskquant/internal/analysis"
	"riskquant/internal/forecast"
	"riskquant/internal/history"
	"riskquant/internal/optimize"
	"riskquant/internal/risk"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ServerName is reported to clients during initialization.
const ServerName = "riskquant"

// Service is the engine surface the tools drive.
type Service interface {
	Sync(ctx context.Context, source string, drafts []risk.Draft, iterations int, seed *int64) (optimize.SimulationContext, []risk.Rejection, error)
	Optimise(source string, req optimize.Request) (optimize.Result, error)
	Analyze(ctx context.Context, req analysis.Request) (analysis.Report, error)
	History() *history.Store
	Projector() *forecast.Projector
	Config() analysis.Config
}

// Server exposes the engine as MCP tools over stdio.
type Server struct {
	svc          Service
	enableCharts bool
	server       *mcpsdk.Server
}

// NewServer builds the MCP server and registers every tool.
func NewServer(svc Service, version string, enableCharts bool) (*Server, error) {
	s := &Server{
		svc:          svc,
		enableCharts: enableCharts,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run serves the protocol on stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("server", ServerName).Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// SDK returns the underlying protocol server.
func (s *Server) SDK() *mcpsdk.Server { return s.server }

// addTool registers h under name with an input schema inferred from In.
// adjust may refine the inferred schema (enums, bounds).
func addTool[In any](srv *mcpsdk.Server, name, description string, h mcpsdk.ToolHandlerFor[In, any], adjust func(*jsonschema.Schema)) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to infer input schema for %s: %w", name, err)
	}
	if adjust != nil {
		adjust(schema)
	}
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}, h)
	return nil
}

// toolResponse is the envelope every tool returns as JSON text.
type toolResponse struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

func textResult(data any, warnings ...string) (*mcpsdk.CallToolResult, any, error) {
	out, err := json.MarshalIndent(toolResponse{Data: data, Warnings: warnings}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(out)}},
	}, nil, nil
}
