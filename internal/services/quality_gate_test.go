package services

import "testing"

func TestDecideQuality(t *testing.T) {
	cases := []struct {
		name      string
		score     int
		threshold int
		want      GateDecision
	}{
		{name: "well above threshold", score: 9, threshold: 7, want: DecisionAccept},
		{name: "exactly at threshold", score: 7, threshold: 7, want: DecisionAccept},
		{name: "one below threshold", score: 6, threshold: 7, want: DecisionImprove},
		{name: "minimum score", score: 1, threshold: 7, want: DecisionImprove},
		{name: "lenient threshold", score: 2, threshold: 1, want: DecisionAccept},
		{name: "strict threshold", score: 9, threshold: 10, want: DecisionImprove},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecideQuality(tc.score, tc.threshold); got != tc.want {
				t.Errorf("DecideQuality(%d, %d) = %q, want %q", tc.score, tc.threshold, got, tc.want)
			}
		})
	}
}
