package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/adapters/memory"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/session"
)

func newTestHandler(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	mgr, err := session.NewManager(memory.NewStore())
	require.NoError(t, err)
	return NewHandler(mgr, opts...)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateSession_GeneratesID(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody[SessionResponse](t, w)
	_, err := uuid.Parse(resp.ID)
	assert.NoError(t, err)

	list := decodeBody[map[string][]string](t, do(t, h, http.MethodGet, "/sessions", nil))
	assert.Equal(t, []string{resp.ID}, list["sessions"])
}

func TestCreateSession_WithID(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodPost, "/sessions", CreateSessionRequest{ID: "room-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "room-1", decodeBody[SessionResponse](t, w).ID)
}

func TestEvaluate_AdvancesSession(t *testing.T) {
	h := newTestHandler(t)
	req := director.Request{
		Theme: "travel",
		Turns: []domain.Turn{{SpeakerID: "alice", Text: "I went to Kyoto last spring."}},
	}

	for want := 1; want <= 2; want++ {
		w := do(t, h, http.MethodPost, "/sessions/s1/evaluate", req)
		require.Equal(t, http.StatusOK, w.Code)
		d := decodeBody[domain.Directive](t, w)
		assert.Equal(t, want, d.Turn)
		assert.NoError(t, d.Validate())
	}

	stats := decodeBody[director.Stats](t, do(t, h, http.MethodGet, "/sessions/s1/stats", nil))
	assert.Equal(t, 2, stats.Turn)

	st := decodeBody[domain.ConversationState](t, do(t, h, http.MethodGet, "/sessions/s1/state", nil))
	assert.Equal(t, "travel", st.Theme)
	assert.Equal(t, 2, st.TurnCounter)
}

func TestEvaluate_InvalidBody(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/evaluate", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decodeBody[ErrorResponse](t, w).Error)
}

func TestResetSession(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/sessions/s1/evaluate", director.Request{}).Code)

	w := do(t, h, http.MethodDelete, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/sessions/s1/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats_UnknownSession(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/sessions/missing/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session not found", decodeBody[ErrorResponse](t, w).Error)
}

func TestOpening(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodPost, "/sessions/s1/opening", OpeningRequest{Theme: "music", First: domain.LabelB})
	require.Equal(t, http.StatusOK, w.Code)

	d := decodeBody[domain.Directive](t, w)
	assert.Equal(t, domain.LabelB, d.TurnStyle.SpeakerLabel)
	require.NotNil(t, d.Opening)

	w = do(t, h, http.MethodPost, "/sessions/s1/opening", OpeningRequest{First: "C"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJudge(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodPost, "/judge", JudgeRequest{
		Text:     "By the way, that is a great point and I agree with it completely.",
		MaxChars: 20,
		Repair:   true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[JudgeResponse](t, w)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Violations, domain.ViolationTooLong)
	assert.Contains(t, resp.Violations, domain.ViolationPraiseUsed)
	assert.Contains(t, resp.Violations, domain.ViolationLongIntro)
	assert.NotEmpty(t, resp.Repaired)
	assert.LessOrEqual(t, len([]rune(resp.Repaired)), 20)
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("director_up 1\n"))
	})
	h := newTestHandler(t, WithMetrics(metrics))
	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "director_up")

	w = do(t, newTestHandler(t), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h, http.MethodOptions, "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
