package model

import "time"

// BattleResult is a stored click battle between two measured players.
type BattleResult struct {
	ID                int64     `json:"id"`
	Player1Name       string    `json:"player1_name"`
	Player1Score      int       `json:"player1_score"`
	Player1Clicks     int       `json:"player1_clicks"`
	Player1FinalScore int       `json:"player1_final_score"`
	Player2Name       string    `json:"player2_name"`
	Player2Score      int       `json:"player2_score"`
	Player2Clicks     int       `json:"player2_clicks"`
	Player2FinalScore int       `json:"player2_final_score"`
	Winner            string    `json:"winner"`
	BattleDate        time.Time `json:"battle_date"`
}

// BattleStanding is the number of battles won under one name.
type BattleStanding struct {
	Name         string    `json:"name"`
	Wins         int       `json:"wins"`
	LatestBattle time.Time `json:"latest_battle"`
}
