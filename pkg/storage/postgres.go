package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/types"
)

const createRecordsTable = `CREATE TABLE IF NOT EXISTS pricewatch_records (
	name TEXT PRIMARY KEY,
	version INTEGER NOT NULL DEFAULT 0,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const selectRecord = `SELECT data, version FROM pricewatch_records WHERE name = $1`

const upsertRecord = `INSERT INTO pricewatch_records (name, version, data, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

// PostgresProvider implements Database on a single PostgreSQL table with one
// row per record.
type PostgresProvider struct {
	db  *sql.DB
	dsn string
}

// NewPostgresProvider returns a PostgresProvider using an open database handle.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func configuredPostgres() *PostgresProvider {
	dsn := lflag.String("postgres-dsn", "", "PostgreSQL connection string (postgres storage)")

	p := &PostgresProvider{}
	lflag.Do(func() {
		p.dsn = *dsn
	})
	return p
}

// Validate checks if the provider is properly configured.
func (p *PostgresProvider) Validate() error {
	if p.dsn == "" {
		return errors.New("postgres-dsn is required")
	}
	return nil
}

// Init opens the connection and creates the records table if needed.
func (p *PostgresProvider) Init(ctx context.Context) error {
	if p.db == nil {
		db, err := sql.Open("pgx", p.dsn)
		if err != nil {
			return fmt.Errorf("failed to open postgres: %w", err)
		}
		p.db = db
	}
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (p *PostgresProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresProvider) get(ctx context.Context, name string) ([]byte, int, error) {
	var data []byte
	var version int
	err := p.db.QueryRowContext(ctx, selectRecord, name).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select %s: %w", name, err)
	}
	return data, version, nil
}

func (p *PostgresProvider) set(ctx context.Context, name string, b []byte, version int) error {
	if _, err := p.db.ExecContext(ctx, upsertRecord, name, version, string(b)); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", name, err)
	}
	return nil
}

// GetState selects the state row.
func (p *PostgresProvider) GetState(ctx context.Context) (types.State, error) {
	b, _, err := p.get(ctx, "state")
	if err != nil || b == nil {
		return types.State{}, err
	}
	return unmarshalState(b)
}

// SetState upserts the state row.
func (p *PostgresProvider) SetState(ctx context.Context, state types.State) error {
	b, err := marshalState(state)
	if err != nil {
		return err
	}
	return p.set(ctx, "state", b, 0)
}

// GetSettings selects the settings row.
func (p *PostgresProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	b, version, err := p.get(ctx, "settings")
	if err != nil || b == nil {
		return types.Settings{}, 0, err
	}
	s, err := unmarshalSettingsBody(b)
	if err != nil {
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings upserts the settings row.
func (p *PostgresProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	b, err := marshalSettingsBody(settings)
	if err != nil {
		return err
	}
	return p.set(ctx, "settings", b, version)
}
