package dto

import "github.com/carddex/carddex-api/internal/models"

// Creation payloads: one struct per submittable entity kind. Decoding is
// strict in the kind handlers; unknown keys are rejected there.

// SetPayload proposes a new card set.
type SetPayload struct {
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Sport string `json:"sport"`
	Brand string `json:"brand"`
}

// SeriesPayload proposes a new series under a set.
type SeriesPayload struct {
	Name string `json:"name"`
}

// CardPayload proposes a new card under a series.
type CardPayload struct {
	Number  string `json:"number"`
	Title   string `json:"title"`
	Rarity  string `json:"rarity"`
	Variant string `json:"variant"`
}

// PlayerPayload proposes a new player.
type PlayerPayload struct {
	FullName  string `json:"fullName"`
	Position  string `json:"position"`
	BirthDate string `json:"birthDate,omitempty"`
}

// TeamPayload proposes a new team.
type TeamPayload struct {
	Name  string `json:"name"`
	City  string `json:"city"`
	Sport string `json:"sport"`
}

// PlayerAliasPayload proposes an alternate player name. The player comes
// from the submission's parent reference.
type PlayerAliasPayload struct {
	Alias string `json:"alias"`
}

// PlayerTeamPayload proposes adding or removing a player-team link. The
// player comes from the parent reference; the team must already exist.
type PlayerTeamPayload struct {
	TeamID int64                   `json:"teamId"`
	Action models.PlayerTeamAction `json:"action"`
}

// Edit patches: tri-state fields so only keys present in the submitted JSON
// are written back to the catalog.

// CardEditPatch patches an existing card.
type CardEditPatch struct {
	Number  models.Field[string] `json:"number"`
	Title   models.Field[string] `json:"title"`
	Rarity  models.Field[string] `json:"rarity"`
	Variant models.Field[string] `json:"variant"`
}

// PlayerEditPatch patches an existing player.
type PlayerEditPatch struct {
	FullName  models.Field[string] `json:"fullName"`
	Position  models.Field[string] `json:"position"`
	BirthDate models.Field[string] `json:"birthDate"`
}

// TeamEditPatch patches an existing team.
type TeamEditPatch struct {
	Name  models.Field[string] `json:"name"`
	City  models.Field[string] `json:"city"`
	Sport models.Field[string] `json:"sport"`
}
