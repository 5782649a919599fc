package prioritizer

import (
	"github.com/aretw0/director/pkg/domain"
)

var softAckFillers = []string{"そうだっけ？", "あれ？違ったかも"}

// scheduleSoftAck registers deflections for a corrected label, merging
// with an existing entry by taking the larger count and expiry.
func (p *Prioritizer) scheduleSoftAck(st *domain.ConversationState, offender domain.Label, turn int) {
	if !offender.Valid() || p.cfg.SoftAckMaxReminders <= 0 {
		return
	}
	if st.PendingSoftAcks == nil {
		st.PendingSoftAcks = make(map[domain.Label]domain.PendingSoftAck)
	}
	next := domain.PendingSoftAck{
		TargetLabel:    offender,
		RemainingCount: p.cfg.SoftAckMaxReminders,
		ExpireTurn:     turn + p.cfg.SoftAckExpireWindow,
	}
	if prev, ok := st.PendingSoftAcks[offender]; ok {
		next.RemainingCount = max(prev.RemainingCount, next.RemainingCount)
		next.ExpireTurn = max(prev.ExpireTurn, next.ExpireTurn)
	}
	st.PendingSoftAcks[offender] = next
}

// PurgeSoftAcks drops entries that can no longer be dispatched at turn.
func PurgeSoftAcks(st *domain.ConversationState, turn int) {
	for label, ack := range st.PendingSoftAcks {
		if !ack.Active(turn) {
			delete(st.PendingSoftAcks, label)
		}
	}
}

// softAck consumes one reminder, A before B.
func (p *Prioritizer) softAck(st *domain.ConversationState, in Input) (domain.Directive, bool) {
	for _, label := range []domain.Label{domain.LabelA, domain.LabelB} {
		ack, ok := st.PendingSoftAcks[label]
		if !ok || !ack.Active(in.Turn) {
			continue
		}
		ack.RemainingCount--
		if ack.RemainingCount <= 0 {
			delete(st.PendingSoftAcks, label)
		} else {
			st.PendingSoftAcks[label] = ack
		}

		d := p.base(in, domain.InterventionSoftAck, "soft_ack_tone")
		d.TurnStyle = domain.TurnStyle{
			SpeakerLabel:      label,
			MaxChars:          60,
			MaxSentences:      1,
			FillerEnabled:     true,
			FillerCandidates:  append([]string(nil), softAckFillers...),
			FillerProbability: 1,
			SpeechAct:         domain.ActAgreeShort,
			FollowUp:          domain.FollowUpNone,
			BannedPatterns:    []domain.BannedPattern{domain.BanPraise, domain.BanListFormat, domain.BanLongIntro},
		}
		return d, true
	}
	return domain.Directive{}, false
}
