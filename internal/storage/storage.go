// Package storage persists fetched draws and prediction history in SQLite.
//
// Draws are cached so an analysis can still run when the lottery API is
// unreachable; the cache is rotated per game to keep at most maxDraws periods.
// Predictions are stored whole as JSON and listed newest first.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rewired-gh/lottoracle/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	game       TEXT    NOT NULL,
	period     INTEGER NOT NULL,
	draw_date  TEXT    NOT NULL,
	draw_unix  INTEGER NOT NULL,
	numbers    TEXT    NOT NULL,
	special    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (game, period)
);
CREATE INDEX IF NOT EXISTS idx_draws_game_date ON draws (game, draw_unix);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT    PRIMARY KEY,
	game         TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	created_unix INTEGER NOT NULL,
	payload      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions (created_unix);
`

// Storage is a SQLite-backed store. It is safe for concurrent use.
type Storage struct {
	db       *sql.DB
	maxDraws int
	path     string
}

// New opens (or creates) the database at dbPath and applies the schema.
// If dbPath is empty, uses OS-appropriate tmp directory.
func New(maxDraws int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "lottoracle", "lottoracle.db")
	}

	dsn := dbPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db, maxDraws: maxDraws, path: dbPath}, nil
}

// Path returns the database location.
func (s *Storage) Path() string {
	return s.path
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveDraws upserts draws and rotates the cache.
func (s *Storage) SaveDraws(draws []models.DrawRecord) error {
	for i := range draws {
		if err := draws[i].Validate(); err != nil {
			return fmt.Errorf("invalid draw %d: %w", draws[i].Period, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO draws (game, period, draw_date, draw_unix, numbers, special)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (game, period) DO UPDATE SET
			draw_date = excluded.draw_date,
			draw_unix = excluded.draw_unix,
			numbers   = excluded.numbers,
			special   = excluded.special`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range draws {
		numbers, err := json.Marshal(d.Numbers)
		if err != nil {
			return fmt.Errorf("failed to marshal numbers: %w", err)
		}
		if _, err := stmt.Exec(d.Game, d.Period, d.DrawDate.Format(time.RFC3339), d.DrawDate.Unix(), string(numbers), d.Special); err != nil {
			return fmt.Errorf("failed to save draw %d: %w", d.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draws: %w", err)
	}
	return s.RotateDraws()
}

// GetDraws returns the draws of game on or after since, newest period first.
func (s *Storage) GetDraws(game string, since time.Time) ([]models.DrawRecord, error) {
	rows, err := s.db.Query(`
		SELECT game, period, draw_date, numbers, special
		FROM draws
		WHERE game = ? AND draw_unix >= ?
		ORDER BY period DESC`, game, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	var draws []models.DrawRecord
	for rows.Next() {
		var (
			d       models.DrawRecord
			date    string
			numbers string
		)
		if err := rows.Scan(&d.Game, &d.Period, &date, &numbers, &d.Special); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		if d.DrawDate, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("invalid stored date for period %d: %w", d.Period, err)
		}
		if err := json.Unmarshal([]byte(numbers), &d.Numbers); err != nil {
			return nil, fmt.Errorf("invalid stored numbers for period %d: %w", d.Period, err)
		}
		draws = append(draws, d)
	}
	return draws, rows.Err()
}

// CountDraws returns how many draws of game are cached.
func (s *Storage) CountDraws(game string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM draws WHERE game = ?`, game).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count draws: %w", err)
	}
	return n, nil
}

// RotateDraws removes old draws exceeding the per-game limit
func (s *Storage) RotateDraws() error {
	if s.maxDraws <= 0 {
		return nil
	}
	for _, g := range models.Games() {
		_, err := s.db.Exec(`
			DELETE FROM draws
			WHERE game = ? AND period NOT IN (
				SELECT period FROM draws WHERE game = ? ORDER BY period DESC LIMIT ?
			)`, g.ID, g.ID, s.maxDraws)
		if err != nil {
			return fmt.Errorf("failed to rotate %s draws: %w", g.ID, err)
		}
	}
	return nil
}

// SavePrediction stores an analysis result, replacing any result with the same ID.
func (s *Storage) SavePrediction(result *models.AnalysisResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid prediction: %w", err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO predictions (id, game, status, created_unix, payload)
		VALUES (?, ?, ?, ?, ?)`,
		result.ID, result.Game, result.Status, result.CreatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// GetPrediction retrieves a prediction by ID
func (s *Storage) GetPrediction(id string) (*models.AnalysisResult, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM predictions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}
	return decodePrediction(payload)
}

// ListPredictions returns up to limit predictions, newest first.
func (s *Storage) ListPredictions(limit int) ([]*models.AnalysisResult, error) {
	if limit <= 0 {
		return []*models.AnalysisResult{}, nil
	}
	rows, err := s.db.Query(`SELECT payload FROM predictions ORDER BY created_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	results := make([]*models.AnalysisResult, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		res, err := decodePrediction(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func decodePrediction(payload string) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return &res, nil
}
