// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// Decision is a filter's verdict on a candidate.
type Decision int

// Decision values. The zero value is NoOpinion so an absent or silent
// filter contributes nothing.
const (
	// NoOpinion means the filter does not care about the candidate.
	NoOpinion Decision = iota
	// Include means the filter wants the candidate activated.
	Include
	// Exclude is a veto: once any filter excludes a candidate the
	// aggregate result is final.
	Exclude
)

// String returns the decision name for logs.
func (d Decision) String() string {
	switch d {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	case NoOpinion:
		return "no-opinion"
	default:
		return "unknown"
	}
}

// Merge folds two decisions. Exclude absorbs, Include dominates
// NoOpinion, NoOpinion is the identity. Merge is associative and
// commutative, so the aggregate over many filters does not depend on
// call order.
func (d Decision) Merge(other Decision) Decision {
	if d == Exclude || other == Exclude {
		return Exclude
	}
	if d == Include || other == Include {
		return Include
	}
	return NoOpinion
}
