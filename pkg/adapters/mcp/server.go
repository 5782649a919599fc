// Package mcp exposes a session.Manager as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/director"
	"github.com/aretw0/director/internal/config"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/session"
)

// ConfigURI is the resource describing the engine tuning.
const ConfigURI = "director://config"

// EvaluateArgs are the arguments of evaluate_turn.
type EvaluateArgs struct {
	SessionID    string               `yaml:"session_id"`
	Theme        string               `yaml:"theme"`
	Turns        []domain.Turn        `yaml:"turns"`
	Participants []domain.Participant `yaml:"participants"`
}

// JudgeArgs are the arguments of judge_text.
type JudgeArgs struct {
	Text         string `yaml:"text"`
	MaxChars     int    `yaml:"max_chars"`
	MaxSentences int    `yaml:"max_sentences"`
	Repair       bool   `yaml:"repair"`
}

// JudgeResult is the structured output of judge_text.
type JudgeResult struct {
	OK         bool               `json:"ok" jsonschema_description:"True when no rule is broken"`
	Violations []domain.Violation `json:"violations" jsonschema_description:"Broken style rules"`
	Repaired   string             `json:"repaired,omitempty" jsonschema_description:"Mechanically repaired text, when requested"`
}

// ResetResult is the structured output of reset_session.
type ResetResult struct {
	SessionID string `json:"session_id"`
	Reset     bool   `json:"reset"`
}

// Option configures the server.
type Option func(*Server)

// WithThresholds sets the tuning published on director://config.
func WithThresholds(t director.Thresholds) Option {
	return func(s *Server) {
		s.thresholds = t
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server wraps a session.Manager and exposes it as an MCP Server.
type Server struct {
	sessions   *session.Manager
	thresholds director.Thresholds
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		sessions:   sessions,
		thresholds: director.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.mcpServer = server.NewMCPServer("director-mcp", strings.TrimSpace(director.Version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	turnSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"speaker_id": map[string]any{"type": "string"},
			"text":       map[string]any{"type": "string"},
		},
		"required": []string{"speaker_id", "text"},
	}
	participantSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":           map[string]any{"type": "string"},
			"display_name": map[string]any{"type": "string"},
		},
	}

	s.mcpServer.AddTool(mcp.NewTool("evaluate_turn",
		mcp.WithDescription("Decide how the next speaker should talk, given the transcript so far."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session ID")),
		mcp.WithArray("turns", mcp.Description("Transcript, most recent last"), mcp.Items(turnSchema)),
		mcp.WithString("theme", mcp.Description("Conversation theme (optional)")),
		mcp.WithArray("participants", mcp.Description("Display names to exclude from entity checks"), mcp.Items(participantSchema)),
		mcp.WithOutputSchema[domain.Directive](),
	), mcp.NewStructuredToolHandler(s.handleEvaluate))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Forget a session: counters, pending acknowledgments and cached verdicts."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session ID")),
		mcp.WithOutputSchema[ResetResult](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("judge_text",
		mcp.WithDescription("Check a generated utterance against length, list, praise and intro rules."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Generated utterance")),
		mcp.WithNumber("max_chars", mcp.Description("Character limit; 0 disables")),
		mcp.WithNumber("max_sentences", mcp.Description("Sentence limit; 0 disables")),
		mcp.WithBoolean("repair", mcp.Description("Return a mechanically repaired text")),
		mcp.WithOutputSchema[JudgeResult](),
	), mcp.NewStructuredToolHandler(s.handleJudge))
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Directive, error) {
	var in EvaluateArgs
	if err := config.Decode(args, &in); err != nil {
		return domain.Directive{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return domain.Directive{}, errors.New("session_id is required")
	}

	d, err := s.sessions.Evaluate(ctx, in.SessionID, director.Request{
		Turns:        in.Turns,
		Theme:        in.Theme,
		Participants: in.Participants,
	})
	if err != nil {
		if d.Turn == 0 {
			return domain.Directive{}, fmt.Errorf("evaluate failed: %w", err)
		}
		s.logger.Warn("session snapshot failed", "session_id", in.SessionID, "err", err)
	}
	return d, nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ResetResult, error) {
	id, _ := args["session_id"].(string)
	if strings.TrimSpace(id) == "" {
		return ResetResult{}, errors.New("session_id is required")
	}
	if err := s.sessions.Reset(ctx, id); err != nil {
		return ResetResult{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetResult{SessionID: id, Reset: true}, nil
}

func (s *Server) handleJudge(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (JudgeResult, error) {
	var in JudgeArgs
	if err := config.Decode(args, &in); err != nil {
		return JudgeResult{}, fmt.Errorf("invalid arguments: %w", err)
	}
	j := domain.JudgeText(in.Text, in.MaxChars, in.MaxSentences)
	res := JudgeResult{OK: j.OK, Violations: j.Violations}
	if res.Violations == nil {
		res.Violations = []domain.Violation{}
	}
	if in.Repair && !j.OK {
		res.Repaired = domain.AutoRepair(in.Text, in.MaxChars)
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ConfigURI, "Engine tuning",
		mcp.WithResourceDescription("Thresholds used by the conversation director"),
		mcp.WithMIMEType("application/json"),
	), s.readConfig)
}

func (s *Server) readConfig(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConfigURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
