package models

import "time"

// CardSet is a top-level release, e.g. "2025 Topps" baseball.
type CardSet struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      int       `db:"year" json:"year"`
	Sport     string    `db:"sport" json:"sport"`
	Brand     string    `db:"brand" json:"brand"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CardSeries is a named subset of a set ("Base", "Chrome Refractors").
type CardSeries struct {
	ID        int64     `db:"id" json:"id"`
	SetID     int64     `db:"set_id" json:"set_id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Card is a single card within a series.
type Card struct {
	ID        int64     `db:"id" json:"id"`
	SeriesID  int64     `db:"series_id" json:"series_id"`
	Number    string    `db:"number" json:"number"`
	Title     string    `db:"title" json:"title"`
	Rarity    string    `db:"rarity" json:"rarity"`
	Variant   string    `db:"variant" json:"variant"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Player is an athlete appearing on cards.
type Player struct {
	ID        int64      `db:"id" json:"id"`
	FullName  string     `db:"full_name" json:"full_name"`
	Position  string     `db:"position" json:"position"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Slug      string     `db:"slug" json:"slug"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Team is a sports franchise.
type Team struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	City      string    `db:"city" json:"city"`
	Sport     string    `db:"sport" json:"sport"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlayerAlias is an alternate name a player is catalogued under.
type PlayerAlias struct {
	ID        int64     `db:"id" json:"id"`
	PlayerID  int64     `db:"player_id" json:"player_id"`
	Alias     string    `db:"alias" json:"alias"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlayerTeam links a player to a team they played for.
type PlayerTeam struct {
	ID        int64     `db:"id" json:"id"`
	PlayerID  int64     `db:"player_id" json:"player_id"`
	TeamID    int64     `db:"team_id" json:"team_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlayerTeamAction distinguishes link additions from removals.
type PlayerTeamAction string

const (
	PlayerTeamAdd    PlayerTeamAction = "ADD"
	PlayerTeamRemove PlayerTeamAction = "REMOVE"
)
