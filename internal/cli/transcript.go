package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/domain"
)

// Transcript is a recorded conversation replayed by the evaluate command.
type Transcript struct {
	Theme        string               `yaml:"theme" json:"theme"`
	Participants []domain.Participant `yaml:"participants" json:"participants"`
	Turns        []domain.Turn        `yaml:"turns" json:"turns"`
}

// LoadTranscript reads a YAML or JSON transcript. The format follows the
// file extension; anything but .json is parsed as YAML.
func LoadTranscript(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to read transcript: %w", err)
	}
	return ParseTranscript(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// ParseTranscript decodes a transcript document.
func ParseTranscript(data []byte, isJSON bool) (Transcript, error) {
	var t Transcript
	if isJSON {
		if err := json.Unmarshal(data, &t); err != nil {
			return Transcript{}, fmt.Errorf("failed to parse transcript json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("failed to parse transcript yaml: %w", err)
	}
	if len(t.Turns) == 0 {
		return Transcript{}, errors.New("transcript has no turns")
	}
	for i, turn := range t.Turns {
		if strings.TrimSpace(turn.SpeakerID) == "" {
			return Transcript{}, fmt.Errorf("turn %d has no speaker_id", i+1)
		}
	}
	return t, nil
}

// Replay feeds the transcript to eng one turn at a time, as a live
// conversation would, and hands every Directive to fn.
func Replay(ctx context.Context, eng *director.Engine, t Transcript, fn func(domain.Turn, domain.Directive)) error {
	for i, turn := range t.Turns {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := director.Request{Turns: t.Turns[:i+1], Theme: t.Theme}
		if i == 0 {
			req.Participants = t.Participants
		}
		fn(turn, eng.Evaluate(ctx, req))
	}
	return nil
}
