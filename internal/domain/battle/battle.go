// Package battle resolves the two-player click battle that follows a pair
// of measurements and aggregates stored results into a win ranking.
package battle

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
)

// Defaults of the click battle.
const (
	DefaultPenaltyPerClick = 100
	DefaultDrawLabel       = "引き分け"
	DefaultPlayer1Name     = "PLAYER1"
	DefaultPlayer2Name     = "PLAYER2"
)

// Player is one side of a battle as measured and clicked.
type Player struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Clicks int    `json:"clicks"`
}

// Outcome is the resolved battle before it is stored.
type Outcome struct {
	Player1      Player `json:"player1"`
	Player2      Player `json:"player2"`
	Player1Final int    `json:"player1_final_score"`
	Player2Final int    `json:"player2_final_score"`
	Penalty      int    `json:"penalty"`
	Penalized    int    `json:"penalized_player,omitempty"` // 1 or 2, 0 when clicks tie
	Winner       string `json:"winner"`
	Draw         bool   `json:"draw"`
}

// Rules configures the resolution.
type Rules struct {
	PenaltyPerClick int    `koanf:"penalty_per_click" json:"penalty_per_click"`
	DrawLabel       string `koanf:"draw_label" json:"draw_label"`
}

// DefaultRules returns the stock rules.
func DefaultRules() Rules {
	return Rules{PenaltyPerClick: DefaultPenaltyPerClick, DrawLabel: DefaultDrawLabel}
}

// Resolve applies the click penalty to the player with fewer clicks and
// picks the winner on the final scores.
func (r Rules) Resolve(p1, p2 Player) Outcome {
	if strings.TrimSpace(p1.Name) == "" {
		p1.Name = DefaultPlayer1Name
	}
	if strings.TrimSpace(p2.Name) == "" {
		p2.Name = DefaultPlayer2Name
	}

	o := Outcome{Player1: p1, Player2: p2, Player1Final: p1.Score, Player2Final: p2.Score}
	switch {
	case p1.Clicks < p2.Clicks:
		o.Penalty = (p2.Clicks - p1.Clicks) * r.PenaltyPerClick
		o.Penalized = 1
		o.Player1Final = max(0, p1.Score-o.Penalty)
	case p2.Clicks < p1.Clicks:
		o.Penalty = (p1.Clicks - p2.Clicks) * r.PenaltyPerClick
		o.Penalized = 2
		o.Player2Final = max(0, p2.Score-o.Penalty)
	}

	switch {
	case o.Player1Final > o.Player2Final:
		o.Winner = p1.Name
	case o.Player2Final > o.Player1Final:
		o.Winner = p2.Name
	default:
		o.Winner = r.DrawLabel
		o.Draw = true
	}
	return o
}

// Result converts the outcome into a storable record dated at.
func (o Outcome) Result(at time.Time) model.BattleResult {
	return model.BattleResult{
		Player1Name:       o.Player1.Name,
		Player1Score:      o.Player1.Score,
		Player1Clicks:     o.Player1.Clicks,
		Player1FinalScore: o.Player1Final,
		Player2Name:       o.Player2.Name,
		Player2Score:      o.Player2.Score,
		Player2Clicks:     o.Player2.Clicks,
		Player2FinalScore: o.Player2Final,
		Winner:            o.Winner,
		BattleDate:        at,
	}
}

// Standings counts wins per winner name, skipping draws. Ordered by wins,
// then most recent win, then name; at most limit rows when limit > 0.
func (r Rules) Standings(results []model.BattleResult, limit int) []model.BattleStanding {
	byName := map[string]*model.BattleStanding{}
	for _, res := range results {
		if res.Winner == "" || res.Winner == r.DrawLabel {
			continue
		}
		s, ok := byName[res.Winner]
		if !ok {
			s = &model.BattleStanding{Name: res.Winner}
			byName[res.Winner] = s
		}
		s.Wins++
		if res.BattleDate.After(s.LatestBattle) {
			s.LatestBattle = res.BattleDate
		}
	}

	out := make([]model.BattleStanding, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if !out[i].LatestBattle.Equal(out[j].LatestBattle) {
			return out[i].LatestBattle.After(out[j].LatestBattle)
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
