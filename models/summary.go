package models

// TeamSummary is the slice of a registration exposed on public surfaces
// and cached by the ledger: just the slot identity and the team name.
type TeamSummary struct {
	ID       int    `json:"id"`
	TeamName string `json:"team_name"`
}
