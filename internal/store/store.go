// Package store reads validators and templates from PostgreSQL. It is an
// alternative source to the REST backend for deployments that share the
// reporting database.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/reportsheets/internal/config"
	"github.com/JonMunkholm/reportsheets/internal/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a template does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to database",
		slog.String("name", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", cfg.MaxConns),
	)
	return pool, nil
}

// Migrate applies the embedded migrations to the database at databaseURL.
func Migrate(databaseURL string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateURL rewrites a postgres URL to the scheme of the pgx/v5 driver.
func migrateURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
	}
	return u.String()
}

// Store reads and writes validators and templates.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// New wraps db.
func New(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "store"))}
}

const listValidatorsSQL = `
SELECT name, columns
FROM validators
ORDER BY name
LIMIT $1 OFFSET $2`

// ListValidators returns one page of validators ordered by name.
// Pages are 1-based.
func (s *Store) ListValidators(ctx context.Context, page, limit int) ([]schema.Validator, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.Query(ctx, listValidatorsSQL, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	defer rows.Close()

	var out []schema.Validator
	for rows.Next() {
		var (
			name    string
			columns []byte
		)
		if err := rows.Scan(&name, &columns); err != nil {
			return nil, fmt.Errorf("scan validator: %w", err)
		}
		v, err := decodeValidator(name, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	return out, nil
}

const getTemplateSQL = `
SELECT id, name, file_name, producers, dimensions, fields, validators
FROM templates
WHERE id = $1`

// templateRow is the raw column set of the templates table.
type templateRow struct {
	ID         string
	Name       string
	FileName   string
	Producers  []string
	Dimensions []string
	Fields     []byte
	Validators []byte
}

// GetTemplate returns one template.
func (s *Store) GetTemplate(ctx context.Context, id string) (*schema.Template, error) {
	var r templateRow
	err := s.db.QueryRow(ctx, getTemplateSQL, id).Scan(
		&r.ID, &r.Name, &r.FileName, &r.Producers, &r.Dimensions, &r.Fields, &r.Validators,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return decodeTemplate(r)
}

const upsertValidatorSQL = `
INSERT INTO validators (name, columns, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET columns = EXCLUDED.columns, updated_at = now()`

// SaveValidator inserts or replaces a validator.
func (s *Store) SaveValidator(ctx context.Context, v schema.Validator) error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("save validator: empty name")
	}
	columns, err := json.Marshal(v.Columns)
	if err != nil {
		return fmt.Errorf("encode validator %s: %w", v.Name, err)
	}
	if _, err := s.db.Exec(ctx, upsertValidatorSQL, v.Name, columns); err != nil {
		return fmt.Errorf("save validator %s: %w", v.Name, err)
	}
	return nil
}

const upsertTemplateSQL = `
INSERT INTO templates (id, name, file_name, producers, dimensions, fields, validators, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    file_name = EXCLUDED.file_name,
    producers = EXCLUDED.producers,
    dimensions = EXCLUDED.dimensions,
    fields = EXCLUDED.fields,
    validators = EXCLUDED.validators,
    updated_at = now()`

// SaveTemplate validates and inserts or replaces a template.
func (s *Store) SaveTemplate(ctx context.Context, tpl schema.Template) error {
	if strings.TrimSpace(tpl.ID) == "" {
		return errors.New("save template: empty id")
	}
	if err := tpl.Validate(); err != nil {
		return err
	}
	r, err := encodeTemplate(tpl)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, upsertTemplateSQL,
		r.ID, r.Name, r.FileName, r.Producers, r.Dimensions, r.Fields, r.Validators)
	if err != nil {
		return fmt.Errorf("save template %s: %w", tpl.ID, err)
	}
	s.logger.Info("template saved", slog.String("template_id", tpl.ID), slog.Int("fields", len(tpl.Fields)))
	return nil
}

func decodeValidator(name string, columns []byte) (schema.Validator, error) {
	v := schema.Validator{Name: name}
	if len(columns) > 0 {
		if err := json.Unmarshal(columns, &v.Columns); err != nil {
			return schema.Validator{}, fmt.Errorf("decode validator %s: %w", name, err)
		}
	}
	return v, nil
}

func decodeTemplate(r templateRow) (*schema.Template, error) {
	tpl := &schema.Template{
		ID:         r.ID,
		Name:       r.Name,
		FileName:   r.FileName,
		Producers:  r.Producers,
		Dimensions: r.Dimensions,
	}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &tpl.Fields); err != nil {
			return nil, fmt.Errorf("decode template %s fields: %w", r.ID, err)
		}
	}
	if len(r.Validators) > 0 {
		if err := json.Unmarshal(r.Validators, &tpl.Validators); err != nil {
			return nil, fmt.Errorf("decode template %s validators: %w", r.ID, err)
		}
	}
	return tpl, nil
}

func encodeTemplate(tpl schema.Template) (templateRow, error) {
	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return templateRow{}, fmt.Errorf("encode template %s fields: %w", tpl.ID, err)
	}
	vs := tpl.Validators
	if vs == nil {
		vs = []schema.Validator{}
	}
	validators, err := json.Marshal(vs)
	if err != nil {
		return templateRow{}, fmt.Errorf("encode template %s validators: %w", tpl.ID, err)
	}
	return templateRow{
		ID:         tpl.ID,
		Name:       tpl.Name,
		FileName:   tpl.FileName,
		Producers:  nonNil(tpl.Producers),
		Dimensions: nonNil(tpl.Dimensions),
		Fields:     fields,
		Validators: validators,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker reports database health for the health endpoint.
type ReadinessChecker struct {
	db      Pinger
	timeout time.Duration
}

// NewReadinessChecker checks db with a 3s ping timeout.
func NewReadinessChecker(db Pinger) *ReadinessChecker {
	return &ReadinessChecker{db: db, timeout: 3 * time.Second}
}

// CheckReady pings the database and returns "ok" or "fail" with a message.
func (c *ReadinessChecker) CheckReady(ctx context.Context) (status, message string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("database unavailable: %v", err)
	}
	return "ok", "connected"
}
