package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
)

// CatalogRepository owns the catalog tables mutated by approved submissions.
// Write methods take an ExtContext so the review engine can run them inside
// its transaction.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// DB exposes the underlying handle for read paths outside transactions.
func (r *CatalogRepository) DB() *sqlx.DB {
	return r.db
}

// InsertSet creates a set row, generating a unique slug from name and year.
func (r *CatalogRepository) InsertSet(ctx context.Context, ext sqlx.ExtContext, set *models.CardSet) (int64, error) {
	slug, err := uniqueSlug(ctx, ext, "sets", slugify(set.Name, fmt.Sprintf("%d", set.Year)))
	if err != nil {
		return 0, err
	}
	set.Slug = slug
	const query = `INSERT INTO sets (name, year, sport, brand, slug, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, set.Name, set.Year, set.Sport, set.Brand, set.Slug); err != nil {
		return 0, fmt.Errorf("insert set: %w", err)
	}
	set.ID = id
	return id, nil
}

// InsertSeries creates a series row under an existing set.
func (r *CatalogRepository) InsertSeries(ctx context.Context, ext sqlx.ExtContext, series *models.CardSeries) (int64, error) {
	slug, err := uniqueSlug(ctx, ext, "series", slugify(series.Name))
	if err != nil {
		return 0, err
	}
	series.Slug = slug
	const query = `INSERT INTO series (set_id, name, slug, created_at)
	VALUES ($1, $2, $3, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, series.SetID, series.Name, series.Slug); err != nil {
		return 0, fmt.Errorf("insert series: %w", err)
	}
	series.ID = id
	return id, nil
}

// InsertCard creates a card row under an existing series.
func (r *CatalogRepository) InsertCard(ctx context.Context, ext sqlx.ExtContext, card *models.Card) (int64, error) {
	slug, err := uniqueSlug(ctx, ext, "cards", slugify(card.Title, card.Number))
	if err != nil {
		return 0, err
	}
	card.Slug = slug
	const query = `INSERT INTO cards (series_id, number, title, rarity, variant, slug, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, card.SeriesID, card.Number, card.Title, card.Rarity, card.Variant, card.Slug); err != nil {
		return 0, fmt.Errorf("insert card: %w", err)
	}
	card.ID = id
	return id, nil
}

// InsertPlayer creates a player row.
func (r *CatalogRepository) InsertPlayer(ctx context.Context, ext sqlx.ExtContext, player *models.Player) (int64, error) {
	slug, err := uniqueSlug(ctx, ext, "players", slugify(player.FullName))
	if err != nil {
		return 0, err
	}
	player.Slug = slug
	const query = `INSERT INTO players (full_name, position, birth_date, slug, created_at)
	VALUES ($1, $2, $3, $4, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, player.FullName, player.Position, player.BirthDate, player.Slug); err != nil {
		return 0, fmt.Errorf("insert player: %w", err)
	}
	player.ID = id
	return id, nil
}

// InsertTeam creates a team row.
func (r *CatalogRepository) InsertTeam(ctx context.Context, ext sqlx.ExtContext, team *models.Team) (int64, error) {
	slug, err := uniqueSlug(ctx, ext, "teams", slugify(team.City, team.Name))
	if err != nil {
		return 0, err
	}
	team.Slug = slug
	const query = `INSERT INTO teams (name, city, sport, slug, created_at)
	VALUES ($1, $2, $3, $4, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, team.Name, team.City, team.Sport, team.Slug); err != nil {
		return 0, fmt.Errorf("insert team: %w", err)
	}
	team.ID = id
	return id, nil
}

// InsertPlayerAlias creates an alias row for an existing player.
func (r *CatalogRepository) InsertPlayerAlias(ctx context.Context, ext sqlx.ExtContext, alias *models.PlayerAlias) (int64, error) {
	const query = `INSERT INTO player_aliases (player_id, alias, created_at)
	VALUES ($1, $2, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, alias.PlayerID, alias.Alias); err != nil {
		return 0, fmt.Errorf("insert player alias: %w", err)
	}
	alias.ID = id
	return id, nil
}

// InsertPlayerTeam links a player to a team.
func (r *CatalogRepository) InsertPlayerTeam(ctx context.Context, ext sqlx.ExtContext, link *models.PlayerTeam) (int64, error) {
	const query = `INSERT INTO player_teams (player_id, team_id, created_at)
	VALUES ($1, $2, NOW()) RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query, link.PlayerID, link.TeamID); err != nil {
		return 0, fmt.Errorf("insert player team: %w", err)
	}
	link.ID = id
	return id, nil
}

// DeletePlayerTeam removes a player-team link. sql.ErrNoRows when the link
// does not exist.
func (r *CatalogRepository) DeletePlayerTeam(ctx context.Context, ext sqlx.ExtContext, playerID, teamID int64) error {
	const query = `DELETE FROM player_teams WHERE player_id = $1 AND team_id = $2`
	result, err := ext.ExecContext(ctx, query, playerID, teamID)
	if err != nil {
		return fmt.Errorf("delete player team: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check player team delete: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSet fetches a set by id.
func (r *CatalogRepository) GetSet(ctx context.Context, ext sqlx.ExtContext, id int64) (*models.CardSet, error) {
	const query = `SELECT id, name, year, sport, brand, slug, created_at FROM sets WHERE id = $1`
	var set models.CardSet
	if err := sqlx.GetContext(ctx, ext, &set, query, id); err != nil {
		return nil, err
	}
	return &set, nil
}

// GetSeries fetches a series by id.
func (r *CatalogRepository) GetSeries(ctx context.Context, ext sqlx.ExtContext, id int64) (*models.CardSeries, error) {
	const query = `SELECT id, set_id, name, slug, created_at FROM series WHERE id = $1`
	var series models.CardSeries
	if err := sqlx.GetContext(ctx, ext, &series, query, id); err != nil {
		return nil, err
	}
	return &series, nil
}

// GetCard fetches a card by id.
func (r *CatalogRepository) GetCard(ctx context.Context, ext sqlx.ExtContext, id int64) (*models.Card, error) {
	const query = `SELECT id, series_id, number, title, rarity, variant, slug, created_at FROM cards WHERE id = $1`
	var card models.Card
	if err := sqlx.GetContext(ctx, ext, &card, query, id); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetPlayer fetches a player by id.
func (r *CatalogRepository) GetPlayer(ctx context.Context, ext sqlx.ExtContext, id int64) (*models.Player, error) {
	const query = `SELECT id, full_name, position, birth_date, slug, created_at FROM players WHERE id = $1`
	var player models.Player
	if err := sqlx.GetContext(ctx, ext, &player, query, id); err != nil {
		return nil, err
	}
	return &player, nil
}

// GetTeam fetches a team by id.
func (r *CatalogRepository) GetTeam(ctx context.Context, ext sqlx.ExtContext, id int64) (*models.Team, error) {
	const query = `SELECT id, name, city, sport, slug, created_at FROM teams WHERE id = $1`
	var team models.Team
	if err := sqlx.GetContext(ctx, ext, &team, query, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// PlayerTeamExists reports whether a player-team link is present.
func (r *CatalogRepository) PlayerTeamExists(ctx context.Context, ext sqlx.ExtContext, playerID, teamID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM player_teams WHERE player_id = $1 AND team_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, ext, &exists, query, playerID, teamID); err != nil {
		return false, fmt.Errorf("check player team: %w", err)
	}
	return exists, nil
}

// patchSet accumulates parameterized SET clauses for a partial update.
type patchSet struct {
	parts []string
	args  []interface{}
}

func addPatch[T any](p *patchSet, column string, f models.Field[T]) {
	if !f.Set {
		return
	}
	if f.Null {
		p.parts = append(p.parts, fmt.Sprintf("%s = NULL", column))
		return
	}
	p.args = append(p.args, f.Value)
	p.parts = append(p.parts, fmt.Sprintf("%s = $%d", column, len(p.args)))
}

func (r *CatalogRepository) applyPatch(ctx context.Context, ext sqlx.ExtContext, table string, id int64, p *patchSet) error {
	if len(p.parts) == 0 {
		return nil
	}
	p.args = append(p.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(p.parts, ", "), len(p.args))
	result, err := ext.ExecContext(ctx, query, p.args...)
	if err != nil {
		return fmt.Errorf("patch %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s patch rows: %w", table, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PatchCard writes only the fields present in the patch.
func (r *CatalogRepository) PatchCard(ctx context.Context, ext sqlx.ExtContext, id int64, patch dto.CardEditPatch) error {
	p := &patchSet{}
	addPatch(p, "number", patch.Number)
	addPatch(p, "title", patch.Title)
	addPatch(p, "rarity", patch.Rarity)
	addPatch(p, "variant", patch.Variant)
	return r.applyPatch(ctx, ext, "cards", id, p)
}

// PatchPlayer writes only the fields present in the patch.
func (r *CatalogRepository) PatchPlayer(ctx context.Context, ext sqlx.ExtContext, id int64, patch dto.PlayerEditPatch) error {
	p := &patchSet{}
	addPatch(p, "full_name", patch.FullName)
	addPatch(p, "position", patch.Position)
	addPatch(p, "birth_date", patch.BirthDate)
	return r.applyPatch(ctx, ext, "players", id, p)
}

// PatchTeam writes only the fields present in the patch.
func (r *CatalogRepository) PatchTeam(ctx context.Context, ext sqlx.ExtContext, id int64, patch dto.TeamEditPatch) error {
	p := &patchSet{}
	addPatch(p, "name", patch.Name)
	addPatch(p, "city", patch.City)
	addPatch(p, "sport", patch.Sport)
	return r.applyPatch(ctx, ext, "teams", id, p)
}
