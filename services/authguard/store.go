package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"authguard/pkg/behavior"
)

// ErrUserExists is returned by CreateUser on a duplicate username.
var ErrUserExists = errors.New("user already exists")

// User is one account row: credentials plus the behavioral baseline.
type User struct {
	Username     string
	PasswordHash string
	Role         string
	Baseline     behavior.Baseline
}

// Repository is everything the HTTP layer needs from persistence. It embeds
// the engine's Store so a single implementation backs both the pipeline and
// the account endpoints.
type Repository interface {
	behavior.Store
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListHistory(ctx context.Context, username string) ([]behavior.HistoryRecord, error)
	Close() error
}

// PostgresStore persists users and verification history in Postgres, with an
// optional Redis read-through cache in front of baseline loads.
type PostgresStore struct {
	db    *sql.DB
	cache *BaselineCache
}

func NewPostgresStore(dbURL string, cache *BaselineCache) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{db: db, cache: cache}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(255) PRIMARY KEY,
		password_hash TEXT NOT NULL DEFAULT '',
		role VARCHAR(50) NOT NULL DEFAULT 'customer',
		flight_mean REAL NOT NULL DEFAULT 0.0,
		dwell_mean REAL NOT NULL DEFAULT 0.0,
		mouse_mean REAL NOT NULL DEFAULT 0.0,
		scroll_mean INTEGER NOT NULL DEFAULT 0,
		scroll_speed REAL NOT NULL DEFAULT 0.0,
		touch_mean REAL NOT NULL DEFAULT 0.0,
		fraud INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(50) NOT NULL DEFAULT 'Registered',
		last_update BIGINT NOT NULL DEFAULT 0,
		locked_until BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS user_history (
		id UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL REFERENCES users(username),
		ts BIGINT NOT NULL,
		flight REAL,
		dwell REAL,
		mouse_speed REAL,
		mouse_metrics JSONB,
		touch_speed REAL,
		touch_metrics JSONB,
		click_positions JSONB,
		scrolls INTEGER,
		scroll_speed REAL,
		scroll_speeds JSONB,
		clicks INTEGER,
		fraud INTEGER,
		status VARCHAR(50)
	);

	CREATE INDEX IF NOT EXISTS idx_user_history_username ON user_history(username);
	CREATE INDEX IF NOT EXISTS idx_user_history_ts ON user_history(ts);`

	_, err := s.db.Exec(query)
	return err
}

const baselineColumns = `flight_mean, dwell_mean, mouse_mean, scroll_mean, scroll_speed, touch_mean, fraud, status, last_update, locked_until`

func scanBaseline(row interface{ Scan(...any) error }) (*behavior.Baseline, error) {
	var b behavior.Baseline
	err := row.Scan(&b.FlightMean, &b.DwellMean, &b.MouseMean, &b.ScrollMean,
		&b.ScrollSpeedMean, &b.TouchMean, &b.FraudScore, &b.Status, &b.LastUpdate, &b.LockedUntil)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBaseline returns (nil, nil) for an unknown identity.
func (s *PostgresStore) LoadBaseline(ctx context.Context, identity string) (*behavior.Baseline, error) {
	if b, ok := s.cache.Get(ctx, identity); ok {
		return b, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+baselineColumns+` FROM users WHERE username = $1`, identity)
	b, err := scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, identity, b)
	return b, nil
}

// SaveBaseline upserts all baseline fields in one statement, creating the
// identity row on the fly for first-verify users.
func (s *PostgresStore) SaveBaseline(ctx context.Context, identity string, b *behavior.Baseline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, flight_mean, dwell_mean, mouse_mean, scroll_mean,
		                   scroll_speed, touch_mean, fraud, status, last_update, locked_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (username) DO UPDATE SET
			flight_mean = EXCLUDED.flight_mean,
			dwell_mean = EXCLUDED.dwell_mean,
			mouse_mean = EXCLUDED.mouse_mean,
			scroll_mean = EXCLUDED.scroll_mean,
			scroll_speed = EXCLUDED.scroll_speed,
			touch_mean = EXCLUDED.touch_mean,
			fraud = EXCLUDED.fraud,
			status = EXCLUDED.status,
			last_update = EXCLUDED.last_update,
			locked_until = EXCLUDED.locked_until`,
		identity, b.FlightMean, b.DwellMean, b.MouseMean, b.ScrollMean,
		b.ScrollSpeedMean, b.TouchMean, b.FraudScore, b.Status, b.LastUpdate, b.LockedUntil)
	if err != nil {
		return err
	}
	s.cache.Set(ctx, identity, b)
	return nil
}

// AppendHistory writes the immutable audit record. Metric serialization
// failures degrade to an empty JSON payload; they must not fail the pipeline.
func (s *PostgresStore) AppendHistory(ctx context.Context, identity string, rec behavior.HistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_history (id, username, ts, flight, dwell, mouse_speed, mouse_metrics,
		                          touch_speed, touch_metrics, click_positions, scrolls,
		                          scroll_speed, scroll_speeds, clicks, fraud, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rec.ID, identity, rec.Timestamp, rec.FlightMean, rec.DwellMean, rec.MouseSpeed,
		metricsJSON(rec.MouseMetrics), rec.TouchSpeed, metricsJSON(rec.TouchMetrics),
		payloadJSON(rec.ClickPositions, "[]"), rec.ScrollCount, rec.ScrollSpeed,
		payloadJSON(rec.ScrollSpeeds, "[]"), rec.ClickCount, rec.Score, rec.Status)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	b := u.Baseline
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, flight_mean, dwell_mean, mouse_mean,
		                   scroll_mean, scroll_speed, touch_mean, fraud, status, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.Username, u.PasswordHash, u.Role, b.FlightMean, b.DwellMean, b.MouseMean,
		b.ScrollMean, b.ScrollSpeedMean, b.TouchMean, b.FraudScore, b.Status, b.LastUpdate)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrUserExists
	}
	if err == nil {
		s.cache.Delete(ctx, u.Username)
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, `+baselineColumns+`
		FROM users WHERE username = $1`, username)
	var u User
	err := row.Scan(&u.Username, &u.PasswordHash, &u.Role,
		&u.Baseline.FlightMean, &u.Baseline.DwellMean, &u.Baseline.MouseMean,
		&u.Baseline.ScrollMean, &u.Baseline.ScrollSpeedMean, &u.Baseline.TouchMean,
		&u.Baseline.FraudScore, &u.Baseline.Status, &u.Baseline.LastUpdate, &u.Baseline.LockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, `+baselineColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.Role,
			&u.Baseline.FlightMean, &u.Baseline.DwellMean, &u.Baseline.MouseMean,
			&u.Baseline.ScrollMean, &u.Baseline.ScrollSpeedMean, &u.Baseline.TouchMean,
			&u.Baseline.FraudScore, &u.Baseline.Status, &u.Baseline.LastUpdate,
			&u.Baseline.LockedUntil); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) ListHistory(ctx context.Context, username string) ([]behavior.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, flight, dwell, mouse_speed, mouse_metrics, touch_speed, touch_metrics,
		       click_positions, scrolls, scroll_speed, scroll_speeds, clicks, fraud, status
		FROM user_history WHERE username = $1 ORDER BY ts DESC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []behavior.HistoryRecord
	for rows.Next() {
		var rec behavior.HistoryRecord
		var mouseJSON, touchJSON, clicksJSON, speedsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.FlightMean, &rec.DwellMean,
			&rec.MouseSpeed, &mouseJSON, &rec.TouchSpeed, &touchJSON, &clicksJSON,
			&rec.ScrollCount, &rec.ScrollSpeed, &speedsJSON, &rec.ClickCount,
			&rec.Score, &rec.Status); err != nil {
			return nil, err
		}
		rec.Identity = username
		rec.MouseMetrics = unmarshalMetrics(mouseJSON)
		rec.TouchMetrics = unmarshalMetrics(touchJSON)
		_ = json.Unmarshal(clicksJSON, &rec.ClickPositions)
		_ = json.Unmarshal(speedsJSON, &rec.ScrollSpeeds)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// metricsJSON serializes path metrics for the JSONB column; nil or
// unmarshalable metrics become an empty object rather than an error.
func metricsJSON(m *behavior.PathMetrics) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func payloadJSON(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}

func unmarshalMetrics(data []byte) *behavior.PathMetrics {
	if len(data) == 0 || string(data) == "{}" || string(data) == "null" {
		return nil
	}
	var m behavior.PathMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return &m
}
