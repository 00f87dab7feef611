package till

// Stage is the last point a bill reached in its linear progression.
// A rejected bill reports the stage it had reached when it failed.
type Stage string

const (
	StageStart            Stage = "start"
	StageStockValidated   Stage = "stock_validated"
	StageTotalsComputed   Stage = "totals_computed"
	StagePaymentValidated Stage = "payment_validated"
	StagePaymentApplied   Stage = "payment_applied"
	StageStockApplied     Stage = "stock_applied"
	StageChangeAllocated  Stage = "change_allocated"
	StageCommitted        Stage = "committed"
	StageAborted          Stage = "aborted"
)

var stageOrder = map[Stage]int{
	StageStart:            0,
	StageStockValidated:   1,
	StageTotalsComputed:   2,
	StagePaymentValidated: 3,
	StagePaymentApplied:   4,
	StageStockApplied:     5,
	StageChangeAllocated:  6,
	StageCommitted:        7,
}

// Mutated reports whether staged drawer or stock changes existed when the
// bill reached s. Only a commit makes them durable.
func (s Stage) Mutated() bool {
	return stageOrder[s] >= stageOrder[StagePaymentApplied]
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCommitted || s == StageAborted
}

func (s Stage) String() string { return string(s) }
