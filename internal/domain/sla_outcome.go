package domain

import "fmt"

// SLAOutcome is the write-once verdict of a response or resolve SLA.
type SLAOutcome int8

const (
	SLAUnevaluated SLAOutcome = iota
	SLAMet
	SLAViolated
)

// OutcomeOf converts a met/missed verdict into an SLAOutcome.
func OutcomeOf(met bool) SLAOutcome {
	if met {
		return SLAMet
	}
	return SLAViolated
}

func (o SLAOutcome) Evaluated() bool { return o != SLAUnevaluated }

// Bool returns nil while unevaluated.
func (o SLAOutcome) Bool() *bool {
	if !o.Evaluated() {
		return nil
	}
	met := o == SLAMet
	return &met
}

func (o SLAOutcome) String() string {
	switch o {
	case SLAUnevaluated:
		return "unevaluated"
	case SLAMet:
		return "met"
	case SLAViolated:
		return "violated"
	}
	return fmt.Sprintf("SLAOutcome(%d)", int8(o))
}

// MarshalJSON renders the outcome as null, true or false.
func (o SLAOutcome) MarshalJSON() ([]byte, error) {
	switch o {
	case SLAMet:
		return []byte("true"), nil
	case SLAViolated:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}
