package engine

import (
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		wantWinner string
		wantRanked []string
	}{
		{
			name:       "empty",
			candidates: nil,
		},
		{
			name:       "single",
			candidates: []Candidate{{ID: "a", Priority: 1}},
			wantWinner: "a",
			wantRanked: []string{"a"},
		},
		{
			name: "priority descending",
			candidates: []Candidate{
				{ID: "low", Priority: 5, Seq: 0},
				{ID: "high", Priority: 10, Seq: 1},
			},
			wantWinner: "high",
			wantRanked: []string{"high", "low"},
		},
		{
			name: "ties by registration order",
			candidates: []Candidate{
				{ID: "late", Priority: 1, Seq: 7},
				{ID: "early", Priority: 1, Seq: 2},
				{ID: "top", Priority: 3, Seq: 9},
			},
			wantWinner: "top",
			wantRanked: []string{"top", "early", "late"},
		},
		{
			name: "negative priorities",
			candidates: []Candidate{
				{ID: "a", Priority: -1, Seq: 0},
				{ID: "b", Priority: 0, Seq: 1},
			},
			wantWinner: "b",
			wantRanked: []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.candidates)
			if tt.wantWinner == "" {
				if res.Winner != nil {
					t.Fatalf("Winner = %v, want nil", res.Winner.ID)
				}
				return
			}
			if res.Winner == nil || res.Winner.ID != tt.wantWinner {
				t.Fatalf("Winner = %v, want %s", res.Winner, tt.wantWinner)
			}
			if len(res.Ranked) != len(tt.wantRanked) {
				t.Fatalf("len(Ranked) = %d, want %d", len(res.Ranked), len(tt.wantRanked))
			}
			for i, id := range tt.wantRanked {
				if res.Ranked[i].ID != id {
					t.Errorf("Ranked[%d] = %s, want %s", i, res.Ranked[i].ID, id)
				}
			}
			if got := len(res.Losers()); got != len(tt.wantRanked)-1 {
				t.Errorf("len(Losers()) = %d, want %d", got, len(tt.wantRanked)-1)
			}
		})
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	in := []Candidate{{ID: "a", Priority: 1}, {ID: "b", Priority: 2, Seq: 1}}
	Resolve(in)
	if in[0].ID != "a" || in[1].ID != "b" {
		t.Errorf("input reordered: %v", in)
	}
}

func TestLostReason(t *testing.T) {
	if got := lostReason("E2", "E1"); got != "E2: lower priority than E1" {
		t.Errorf("lostReason() = %q", got)
	}
}
