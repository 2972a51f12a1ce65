// Package mcpserver exposes the runtime panel as MCP tools so external
// controllers (stream decks, agents) can drive effects over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/erinmikailstaples/soundstage/internal/session"
)

// Controller is the panel surface the tools drive.
type Controller interface {
	Snapshot() session.PanelSnapshot
	LoadInitial(ctx context.Context) error
	Refresh(ctx context.Context) error
	ToggleAnalysis(ctx context.Context) error
	ToggleAutoTrigger(ctx context.Context) error
	TriggerEffect(ctx context.Context, effectID string) error
}

// Server wires a Controller to an MCP server.
type Server struct {
	panel  Controller
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New builds the MCP server. It refuses unless consent and onboarding have
// both been completed.
func New(panel Controller, boot *session.BootState, version string, logger *slog.Logger) (*Server, error) {
	if !boot.Runtime() {
		return nil, &session.InvalidStateError{Op: "start mcp server", Reason: session.ErrNotInRuntime}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		panel:  panel,
		logger: logger,
		mcp:    server.NewMCPServer("soundstage", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// Serve loads the panel and serves MCP over in and out until ctx is
// canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := s.panel.LoadInitial(ctx); err != nil {
		s.logger.Warn("initial load incomplete", "error", err)
	}
	s.logger.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Report whether live analysis and auto-triggering are on, plus recent manual triggers"),
	), s.handleStatus)

	s.mcp.AddTool(mcp.NewTool("list_effects",
		mcp.WithDescription("List the sound effects available for manual triggering"),
	), s.handleListEffects)

	s.mcp.AddTool(mcp.NewTool("trigger_effect",
		mcp.WithDescription("Play a sound effect now"),
		mcp.WithString("effect_id",
			mcp.Required(),
			mcp.Description("Effect id from list_effects, e.g. applause"),
		),
	), s.handleTrigger)

	s.mcp.AddTool(mcp.NewTool("toggle_analysis",
		mcp.WithDescription("Start live audio analysis, or stop it (stopping also turns auto-trigger off)"),
	), s.handleToggleAnalysis)

	s.mcp.AddTool(mcp.NewTool("toggle_auto_trigger",
		mcp.WithDescription("Turn automatic effect triggering on or off; turning it on requires active analysis"),
	), s.handleToggleAuto)
}

type statusResult struct {
	Active             bool     `json:"active"`
	AutoTriggerEnabled bool     `json:"auto_trigger_enabled"`
	Pending            string   `json:"pending"`
	LastOutcome        string   `json:"last_outcome"`
	RecentTriggers     []string `json:"recent_triggers"`
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.panel.Refresh(ctx); err != nil {
		s.logger.Warn("status refresh failed", "error", err)
	}
	return jsonResult(statusFromSnapshot(s.panel.Snapshot()))
}

func (s *Server) handleListEffects(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.panel.Snapshot().Effects)
}

func (s *Server) handleTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("effect_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.panel.TriggerEffect(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trigger %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("triggered %s", id)), nil
}

func (s *Server) handleToggleAnalysis(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.panel.ToggleAnalysis(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("toggle analysis: %v", err)), nil
	}
	return jsonResult(statusFromSnapshot(s.panel.Snapshot()))
}

func (s *Server) handleToggleAuto(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.panel.ToggleAutoTrigger(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("toggle auto-trigger: %v", err)), nil
	}
	return jsonResult(statusFromSnapshot(s.panel.Snapshot()))
}

func statusFromSnapshot(snap session.PanelSnapshot) statusResult {
	recent := make([]string, 0, len(snap.Activity))
	for _, e := range snap.Activity {
		recent = append(recent, e.EffectID)
	}
	return statusResult{
		Active:             snap.State.Active,
		AutoTriggerEnabled: snap.State.AutoTriggerEnabled,
		Pending:            snap.Pending.String(),
		LastOutcome:        snap.LastOutcome.String(),
		RecentTriggers:     recent,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
