package prioritizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/director/internal/textutil"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

// Reviewer writes a one-line note about a questionable utterance.
type Reviewer interface {
	ReviewNote(ctx context.Context, utterance string) (string, error)
}

const (
	reviewMaxChars = 120
	reviewPrompt   = "あなたは対話ディレクターのレビュアです。発話に曖昧さ・誤認・ありえない主張があれば、" +
		"端的な助言調で一文だけ指摘してください。JSON、箇条書き、丁寧語は使わない。問題がなければ『特に不自然ではない』とだけ答える。"
)

// CompleterReviewer asks an LLM for the review note.
type CompleterReviewer struct {
	completer ports.Completer
	timeout   time.Duration
	gate      func() error
}

// NewCompleterReviewer wraps c. A non-positive timeout means 5s; a non-nil
// gate is consulted before every call.
func NewCompleterReviewer(c ports.Completer, timeout time.Duration, gate func() error) *CompleterReviewer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CompleterReviewer{completer: c, timeout: timeout, gate: gate}
}

// ReviewNote returns the first line of the completion, repaired to fit one short line.
func (r *CompleterReviewer) ReviewNote(ctx context.Context, utterance string) (string, error) {
	if r.gate != nil {
		if err := r.gate(); err != nil {
			return "", fmt.Errorf("review note: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.completer.Complete(ctx, reviewPrompt, "発話:\n"+textutil.Clean(utterance), ports.CompleteOptions{
		Temperature: 0.2,
		MaxTokens:   128,
	})
	if err != nil {
		return "", fmt.Errorf("review note: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(textutil.Clean(out)), "\n")
	note := domain.AutoRepair(line, reviewMaxChars)
	if note == "" {
		return "", fmt.Errorf("review note: empty completion: %w", domain.ErrMalformedOutput)
	}
	return note, nil
}
