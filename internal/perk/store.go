package perk

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/realmchat/chat-engine/internal/chat"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store keeps selections in the character_perks table.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("perk: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("perk: ping: %w", err)
	}
	return db, nil
}

// Migrate applies every pending schema migration.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("perk: migrations source: %w", err)
	}
	drv, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("perk: migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("perk: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("perk: migrate up: %w", err)
	}
	return nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts the selection when the character has no row and updates it
// when there is exactly one. With more than one row it returns
// ErrDuplicateRecords and writes nothing.
func (s *Store) Save(ctx context.Context, id chat.PlayerID, sel Selection) error {
	var rows int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM character_perks WHERE guid = $1`, int64(id)).Scan(&rows)
	if err != nil {
		return fmt.Errorf("perk: count: %w", err)
	}

	switch rows {
	case 0:
		const query = `
			INSERT INTO character_perks (guid, perk1, perk2, perk3, perk4)
			VALUES ($1, $2, $3, $4, $5)`
		if _, err := s.db.ExecContext(ctx, query, int64(id), sel[0], sel[1], sel[2], sel[3]); err != nil {
			return fmt.Errorf("perk: insert: %w", err)
		}
	case 1:
		const query = `
			UPDATE character_perks SET perk1 = $2, perk2 = $3, perk3 = $4, perk4 = $5
			WHERE guid = $1`
		if _, err := s.db.ExecContext(ctx, query, int64(id), sel[0], sel[1], sel[2], sel[3]); err != nil {
			return fmt.Errorf("perk: update: %w", err)
		}
	default:
		return ErrDuplicateRecords
	}
	return nil
}

// Load returns the character's selection. ok is false when there is no row.
func (s *Store) Load(ctx context.Context, id chat.PlayerID) (Selection, bool, error) {
	var sel Selection
	err := s.db.QueryRowContext(ctx,
		`SELECT perk1, perk2, perk3, perk4 FROM character_perks WHERE guid = $1 LIMIT 1`, int64(id)).
		Scan(&sel[0], &sel[1], &sel[2], &sel[3])
	if errors.Is(err, sql.ErrNoRows) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, fmt.Errorf("perk: load: %w", err)
	}
	return sel, true, nil
}
