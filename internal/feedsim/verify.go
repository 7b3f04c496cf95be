package feedsim

import (
	"math"
	"sort"

	"github.com/okian/fantasylive/internal/domain/types"
)

// Mismatch is a player whose engine total differs from the local total.
type Mismatch struct {
	PlayerID string
	Expected float64
	Actual   float64
	Missing  bool
}

// Verify compares expected totals against the engine's player views.
// Players the engine tracks but the feed never mentioned are ignored.
func Verify(expected map[string]float64, players []types.PlayerUpdate) []Mismatch {
	actual := make(map[string]float64, len(players))
	for _, pu := range players {
		if pu.Player != nil {
			actual[pu.Player.ID] = pu.Player.FantasyPoints
		}
	}

	var out []Mismatch
	for id, want := range expected {
		got, ok := actual[id]
		switch {
		case !ok:
			out = append(out, Mismatch{PlayerID: id, Expected: want, Missing: true})
		case math.Abs(got-want) > pointsTolerance:
			out = append(out, Mismatch{PlayerID: id, Expected: want, Actual: got})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
