package director_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/director"
	"github.com/aretw0/director/pkg/domain"
)

// ExampleEngine_Evaluate shows the rhythm plan for a conversation that has
// not started yet.
func ExampleEngine_Evaluate() {
	eng, err := director.New(director.WithSessionID("example"), director.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}

	d := eng.Evaluate(context.Background(), director.Request{Theme: "travel"})
	fmt.Println(d.Turn, d.Intervention, d.TurnStyle.SpeakerLabel, d.TurnStyle.MaxChars, d.TurnStyle.SpeechAct)
	// Output: 1 rhythm A 95 ask
}

// ExampleEngine_Evaluate_factCheck shows a claim that cannot be verified
// because no Evidence Source is configured.
func ExampleEngine_Evaluate_factCheck() {
	eng, err := director.New(director.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}

	d := eng.Evaluate(context.Background(), director.Request{
		Turns: []domain.Turn{{SpeakerID: "alice", Text: "Sydney is the capital of Australia."}},
	})
	fmt.Println(d.Intervention, d.Reason, d.TurnStyle.SpeakerLabel)
	fmt.Println(d.Claims[0].Status, d.Review.RequiredActions)
	fmt.Println(d.Degradations)
	// Output:
	// fact_check claim_unverified B
	// unknown [request_clarification]
	// [evidence_source_unavailable]
}
