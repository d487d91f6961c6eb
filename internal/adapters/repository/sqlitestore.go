package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps the ranking and battles in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database and applies migrations.
func NewSQLiteStore(ctx context.Context, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	if err := os.MkdirAll(filepath.Dir(o.sqlitePath), dirPerm); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", o.sqlitePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: o.now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Backend implements Repository.
func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save implements Store.Save.
func (s *SQLiteStore) Save(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(BackendSQLite, elapsedMs(start)) }()

	if err := validateEntry(e); err != nil {
		return model.ScoreEntry{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	const q = `INSERT INTO ranking (name, score, image, stats, created_at) VALUES (?, ?, ?, ?, ?)`
	args := []any{e.Name, e.Score, e.Image, string(e.Stats), e.CreatedAt.Format(timeLayout)}
	if e.ID != 0 {
		const qID = `INSERT OR REPLACE INTO ranking (id, name, score, image, stats, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		if _, err := s.db.ExecContext(ctx, qID, append([]any{e.ID}, args...)...); err != nil {
			return model.ScoreEntry{}, fmt.Errorf("save entry: %w", err)
		}
		return e, nil
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.ScoreEntry{}, fmt.Errorf("save entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return model.ScoreEntry{}, fmt.Errorf("save entry: %w", err)
	}
	return e, nil
}

const selectEntry = `SELECT id, name, score, image, stats, created_at FROM ranking`

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (model.ScoreEntry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScoreEntry{}, ErrNotFound
	}
	return e, err
}

// Position implements Store.Position.
func (s *SQLiteStore) Position(ctx context.Context, id int64) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(BackendSQLite, elapsedMs(start)) }()

	e, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	var before int
	const q = `SELECT COUNT(*) FROM ranking WHERE score > ? OR (score = ? AND id < ?)`
	if err := s.db.QueryRowContext(ctx, q, e.Score, e.Score, e.ID).Scan(&before); err != nil {
		return 0, fmt.Errorf("position: %w", err)
	}
	return before + 1, nil
}

// TopN implements Store.TopN.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]model.ScoreEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(BackendSQLite, elapsedMs(start)) }()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY score DESC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top n: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScoreEntry, 0, n)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(BackendSQLite, elapsedMs(start)) }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM ranking WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Clear implements Store.Clear.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ranking`)
	if err != nil {
		return 0, fmt.Errorf("clear ranking: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ranking`).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return 0
	}
	return n
}

// SaveBattle implements BattleStore.SaveBattle.
func (s *SQLiteStore) SaveBattle(ctx context.Context, r model.BattleResult) (model.BattleResult, error) {
	if r.BattleDate.IsZero() {
		r.BattleDate = s.now().UTC()
	}
	const q = `INSERT INTO battle_results (
		player1_name, player1_score, player1_clicks, player1_final_score,
		player2_name, player2_score, player2_clicks, player2_final_score,
		winner, battle_date
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		r.Player1Name, r.Player1Score, r.Player1Clicks, r.Player1FinalScore,
		r.Player2Name, r.Player2Score, r.Player2Clicks, r.Player2FinalScore,
		r.Winner, r.BattleDate.Format(timeLayout),
	)
	if err != nil {
		return model.BattleResult{}, fmt.Errorf("save battle: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return model.BattleResult{}, fmt.Errorf("save battle: %w", err)
	}
	return r, nil
}

// Battles implements BattleStore.Battles.
func (s *SQLiteStore) Battles(ctx context.Context) ([]model.BattleResult, error) {
	const q = `SELECT id, player1_name, player1_score, player1_clicks, player1_final_score,
		player2_name, player2_score, player2_clicks, player2_final_score, winner, battle_date
		FROM battle_results ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	var out []model.BattleResult
	for rows.Next() {
		var r model.BattleResult
		var date string
		if err := rows.Scan(&r.ID, &r.Player1Name, &r.Player1Score, &r.Player1Clicks, &r.Player1FinalScore,
			&r.Player2Name, &r.Player2Score, &r.Player2Clicks, &r.Player2FinalScore, &r.Winner, &date); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if r.BattleDate, err = time.Parse(timeLayout, date); err != nil {
			return nil, fmt.Errorf("parse battle_date: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.ScoreEntry, error) {
	var e model.ScoreEntry
	var stats, created string
	if err := row.Scan(&e.ID, &e.Name, &e.Score, &e.Image, &stats, &created); err != nil {
		return model.ScoreEntry{}, err
	}
	if stats != "" {
		e.Stats = []byte(stats)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return model.ScoreEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}
