/*
Package director is a per-turn decision engine for two-party automated dialogues.

For every turn it emits exactly one Directive: how the next utterance should be
shaped (length, speech act, filler usage) and whether a content intervention
(fact check, entity correction, offtopic refocus or soft acknowledgment)
overrides plain rhythm control. It never writes the utterance itself.

# Pipeline

Each Evaluate call runs the same stages:

  - Analyze: rolling statistics and stable A/B labels from the transcript.
  - Extract: up to three claims and four entities from the latest utterance,
    heuristically, optionally enriched by an LLM.
  - Verify: cached, rate-limited, bounded lookups against an Evidence Source.
  - Prioritize: offtopic refocus, then corrections, then pending soft
    acknowledgments, first match wins.
  - Plan: rhythm-only styling when nothing else fired.

Every collaborator is optional. Without an Evidence Source all verdicts are
unknown; without an LLM extraction is heuristic only. Evaluate never fails:
timeouts, budget exhaustion and even panics degrade to the rhythm plan and are
reported in Directive.Degradations.

# Usage

	package main

	import (
		"context"
		"fmt"

		"github.com/aretw0/director"
		"github.com/aretw0/director/pkg/adapters/wikipedia"
		"github.com/aretw0/director/pkg/domain"
	)

	func main() {
		eng, err := director.New(
			director.WithSessionID("demo"),
			director.WithEvidenceSource(wikipedia.New(wikipedia.WithLanguage("en"))),
		)
		if err != nil {
			panic(err)
		}

		turns := []domain.Turn{
			{SpeakerID: "alice", Text: "I read that Sydney is the capital of Australia."},
		}
		d := eng.Evaluate(context.Background(), director.Request{Turns: turns, Theme: "travel"})
		fmt.Println(d.Intervention, d.TurnStyle.SpeakerLabel, d.TurnStyle.MaxChars)
	}

Sessions with persistence and locking are managed by pkg/session; HTTP and MCP
transports live under pkg/adapters.
*/
package director
