package scoring

import "sort"

// Standing is a player's cumulative position across rounds.
type Standing struct {
	PlayerID string `json:"playerId"`
	Total    int    `json:"total"`
	Rank     int    `json:"rank"`
}

// Tally accumulates round points per player.
type Tally map[string]int

// Add folds a round's scores into the tally.
func (t Tally) Add(scores []RoundScore) {
	for _, s := range scores {
		t[s.PlayerID] += s.RoundPoints
	}
}

// Standings ranks the tally by descending total with competition ranking.
// Equal totals are ordered by player id so every caller sees the same table.
func (t Tally) Standings() []Standing {
	out := make([]Standing, 0, len(t))
	for id, total := range t {
		out = append(out, Standing{PlayerID: id, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	for i := range out {
		if i == 0 || out[i].Total != out[i-1].Total {
			out[i].Rank = i + 1
		} else {
			out[i].Rank = out[i-1].Rank
		}
	}
	return out
}

// Winner returns the leading player id, or "" when the tally is empty.
func (t Tally) Winner() string {
	standings := t.Standings()
	if len(standings) == 0 {
		return ""
	}
	return standings[0].PlayerID
}
