// Package extract finds verifiable claims and named entities in an utterance.
//
// The Heuristic extractor always runs and never fails. An LLM extractor can
// decorate it; any error or malformed answer from the model falls back to
// the heuristic result.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/director/pkg/domain"
)

const (
	// MaxClaims is the per-utterance claim cap.
	MaxClaims = 3
	// MaxEntities is the per-utterance entity cap.
	MaxEntities = 4
	// minClaimRunes drops fragments too short to verify.
	minClaimRunes = 8
)

// Input is the utterance to analyse.
type Input struct {
	Text         string
	Participants []domain.Participant
}

// Result holds the extracted items, already filtered and capped.
type Result struct {
	Claims       []domain.Claim
	Entities     []domain.Entity
	Degradations []domain.Degradation
}

// Extractor is one link of the extraction chain.
type Extractor interface {
	Extract(ctx context.Context, in Input) Result
}

// Finalize applies the shared filtering to raw candidates: stop-listed and
// participant names are removed, duplicates dropped, caps applied, and claim
// IDs assigned in order.
func Finalize(claims []domain.Claim, entities []domain.Entity, participants []domain.Participant) ([]domain.Claim, []domain.Entity) {
	names := participantBases(participants)

	var outClaims []domain.Claim
	seenClaims := make(map[string]struct{})
	for _, c := range claims {
		c.Text = strings.TrimSpace(c.Text)
		if runeLen(c.Text) < minClaimRunes || !c.Type.Valid() {
			continue
		}
		if _, dup := seenClaims[c.Text]; dup {
			continue
		}
		seenClaims[c.Text] = struct{}{}
		if c.Status == "" {
			c.Status = domain.VerdictUnknown
		}
		outClaims = append(outClaims, c)
		if len(outClaims) == MaxClaims {
			break
		}
	}
	for i := range outClaims {
		outClaims[i].ID = fmt.Sprintf("C%d", i+1)
	}

	var outEntities []domain.Entity
	for _, e := range entities {
		e.Name = strings.TrimSpace(e.Name)
		if !e.Type.Valid() || !passes(e.Name, e.Type) {
			continue
		}
		if isParticipant(e.Name, names) || overlapsAny(e.Name, outEntities) {
			continue
		}
		if e.Status == "" {
			e.Status = domain.VerdictUnknown
		}
		outEntities = append(outEntities, e)
		if len(outEntities) == MaxEntities {
			break
		}
	}
	return outClaims, outEntities
}

// overlapsAny reports whether name duplicates or is contained in a kept entity.
func overlapsAny(name string, kept []domain.Entity) bool {
	for _, k := range kept {
		if k.Name == name || strings.Contains(k.Name, name) {
			return true
		}
	}
	return false
}
