package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/director/pkg/domain"
)

// DetectProfile picks the colour profile for w. Anything that is not a
// terminal, or a terminal with NO_COLOR set, gets plain ASCII.
func DetectProfile(w io.Writer) termenv.Profile {
	if termenv.EnvNoColor() {
		return termenv.Ascii
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return termenv.NewOutput(w).ColorProfile()
	}
	return termenv.Ascii
}

// Renderer prints directives for humans.
type Renderer struct {
	w       io.Writer
	profile termenv.Profile
}

// NewRenderer writes to w using the detected colour profile.
func NewRenderer(w io.Writer) *Renderer {
	return NewRendererWithProfile(w, DetectProfile(w))
}

// NewRendererWithProfile writes to w using profile.
func NewRendererWithProfile(w io.Writer, profile termenv.Profile) *Renderer {
	return &Renderer{w: w, profile: profile}
}

var interventionColors = map[domain.Intervention]string{
	domain.InterventionOfftopicRefocus:  "#facc15",
	domain.InterventionFactCheck:        "#f87171",
	domain.InterventionEntityCorrection: "#c084fc",
	domain.InterventionSoftAck:          "#22d3ee",
	domain.InterventionRhythm:           "#a3a3a3",
}

func (r *Renderer) style(s, hex string) termenv.Style {
	return r.profile.String(s).Foreground(r.profile.Color(hex))
}

// Turn prints the utterance that was just added to the transcript.
func (r *Renderer) Turn(t domain.Turn) {
	fmt.Fprintf(r.w, "%s %s\n", r.style(t.SpeakerID+":", "#818cf8").Bold(), t.Text)
}

// Directive prints the decision for the next turn.
func (r *Renderer) Directive(d domain.Directive) {
	head := string(d.Intervention)
	if d.Reason != "" {
		head += " (" + d.Reason + ")"
	}
	ts := d.TurnStyle
	fmt.Fprintf(r.w, "  #%d -> %s  %s  %d chars, %d sentences, %s/%s, %s\n",
		d.Turn,
		r.style(string(ts.SpeakerLabel), "#e879f9").Bold(),
		r.style(head, interventionColors[d.Intervention]),
		ts.MaxChars, ts.MaxSentences, ts.SpeechAct, ts.FollowUp, d.ClosingHint,
	)
	if d.Cadence.ForcedSwitch {
		fmt.Fprintln(r.w, "     forced switch")
	}
	for _, c := range d.Claims {
		fmt.Fprintf(r.w, "     claim %s %s %q\n", c.Type, r.verdict(c.Status), c.Text)
	}
	for _, e := range d.Entities {
		fmt.Fprintf(r.w, "     entity %s %s %q\n", e.Type, r.verdict(e.Status), e.Name)
	}
	if d.Review != nil {
		actions := make([]string, len(d.Review.RequiredActions))
		for i, a := range d.Review.RequiredActions {
			actions[i] = string(a)
		}
		fmt.Fprintf(r.w, "     review [%s] ttl %d\n", strings.Join(actions, ", "), d.Review.TTLTurns)
		if d.Review.Note != "" {
			fmt.Fprintf(r.w, "     note %s\n", d.Review.Note)
		}
	}
	if d.Note != nil {
		fmt.Fprintf(r.w, "     refocus %s\n", d.Note.ResetPrompt)
	}
	if d.Opening != nil {
		fmt.Fprintf(r.w, "     opening %s\n", d.Opening.Instruction)
	}
	if len(d.Degradations) > 0 {
		reasons := make([]string, len(d.Degradations))
		for i, g := range d.Degradations {
			reasons[i] = string(g)
		}
		fmt.Fprintf(r.w, "     %s %s\n", r.style("degraded", "#fb923c"), strings.Join(reasons, ", "))
	}
}

func (r *Renderer) verdict(v domain.Verdict) termenv.Style {
	switch v {
	case domain.VerdictTrue:
		return r.style(string(v), "#4ade80")
	case domain.VerdictFalse:
		return r.style(string(v), "#f87171")
	}
	return r.style(string(v), "#a3a3a3")
}
