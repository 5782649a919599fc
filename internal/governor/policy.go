package governor

// Features lists the checks allowed under the current budget.
type Features struct {
	FactCheck     bool `json:"fact_check"`
	EntityCheck   bool `json:"entity_check"`
	Contradiction bool `json:"contradiction"`
}

const (
	fullBudgetFloor    = 500
	partialBudgetFloor = 100
)

// Policy maps the remaining daily budget to the allowed checks.
// Entity checks are never switched off here; Acquire refuses them once the
// budget is gone.
func Policy(remainingDaily int) Features {
	switch {
	case remainingDaily > fullBudgetFloor:
		return Features{FactCheck: true, EntityCheck: true, Contradiction: true}
	case remainingDaily > partialBudgetFloor:
		return Features{EntityCheck: true, Contradiction: true}
	default:
		return Features{EntityCheck: true}
	}
}
