package engine

import (
	"fmt"
	"sort"
)

// Candidate is an experience that passed targeting and frequency.
type Candidate struct {
	ID       string
	Priority int
	Seq      int // registration order
}

// Resolution is the outcome of priority resolution.
type Resolution struct {
	Winner *Candidate  // nil when there were no candidates
	Ranked []Candidate // priority descending, registration order on ties
}

// Losers returns every ranked candidate except the winner.
func (r Resolution) Losers() []Candidate {
	if len(r.Ranked) < 2 {
		return nil
	}
	return r.Ranked[1:]
}

// Resolve orders candidates by priority descending and picks the first.
// Ties go to the earliest registration. The input slice is not modified.
func Resolve(candidates []Candidate) Resolution {
	if len(candidates) == 0 {
		return Resolution{}
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	// Stable sort keeps input order among fully equal keys.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Seq < ranked[j].Seq
	})

	return Resolution{Winner: &ranked[0], Ranked: ranked}
}

// lostReason is the exclusion text for a candidate outranked by winnerID.
func lostReason(id, winnerID string) string {
	return fmt.Sprintf("%s: lower priority than %s", id, winnerID)
}
