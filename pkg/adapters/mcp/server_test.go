package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/adapters/memory"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/session"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *session.Manager) {
	t.Helper()
	mgr, err := session.NewManager(memory.NewStore())
	require.NoError(t, err)
	return NewServer(mgr, opts...), mgr
}

func TestListTools(t *testing.T) {
	s, _ := newTestServer(t)
	resp := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"evaluate_turn", "reset_session", "judge_text"} {
		assert.Contains(t, string(raw), name)
	}
}

func TestEvaluateTurn(t *testing.T) {
	s, mgr := newTestServer(t)
	ctx := context.Background()
	args := map[string]any{
		"session_id": "s1",
		"theme":      "travel",
		"turns": []any{
			map[string]any{"speaker_id": "alice", "text": "I went to Kyoto last spring."},
			map[string]any{"speaker_id": "bob", "text": "Did you see the temples?"},
		},
	}

	d, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Turn)
	require.NoError(t, d.Validate())

	st, err := mgr.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "travel", st.Theme)
	assert.Len(t, st.Participants, 2)
}

func TestEvaluateTurn_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]any{"turns": []any{}})
	require.ErrorContains(t, err, "session_id")

	_, err = s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": "s1", "bogus": 1})
	require.ErrorContains(t, err, "invalid arguments")
}

func TestResetSession(t *testing.T) {
	s, mgr := newTestServer(t)
	ctx := context.Background()
	_, err := mgr.Evaluate(ctx, "s1", director.Request{})
	require.NoError(t, err)

	res, err := s.handleReset(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, ResetResult{SessionID: "s1", Reset: true}, res)

	_, err = mgr.Stats(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = s.handleReset(ctx, mcp.CallToolRequest{}, map[string]any{})
	assert.Error(t, err)
}

func TestJudgeText(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleJudge(ctx, mcp.CallToolRequest{}, map[string]any{
		"text":          "- first\n- second",
		"max_chars":     float64(100),
		"max_sentences": float64(3),
		"repair":        true,
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, []domain.Violation{domain.ViolationListDetected}, res.Violations)
	assert.Equal(t, "first\nsecond", res.Repaired)

	res, err = s.handleJudge(ctx, mcp.CallToolRequest{}, map[string]any{"text": "Fine."})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Repaired)
}

func TestConfigResource(t *testing.T) {
	th := director.DefaultThresholds()
	th.Interventions.RefocusCooldown = 7
	s, _ := newTestServer(t, WithThresholds(th))

	contents, err := s.readConfig(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, ConfigURI, text.URI)

	var got director.Thresholds
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	assert.Equal(t, 7, got.Interventions.RefocusCooldown)
}
