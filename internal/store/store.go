// Package store persists analysis results in SQLite so past measurements
// can be listed, searched, and deleted through the API.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// Analysis is one persisted measurement result.
type Analysis struct {
	ID           int64     `json:"id"`
	Breed        string    `json:"breed"`
	Posture      string    `json:"posture"`
	ChestCM      float64   `json:"chest_cm"`
	NeckCM       float64   `json:"neck_cm"`
	BodyLengthCM float64   `json:"body_length_cm"`
	WeightKg     float64   `json:"weight_kg"`
	SizeCategory string    `json:"size_category"`
	CoatColor    string    `json:"coat_color,omitempty"`
	Confidence   float64   `json:"confidence"`
	QualityFlag  string    `json:"quality_flag"`
	Method       string    `json:"method"`
	ImageURL     string    `json:"image_url,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// FromResult maps a positive pipeline result onto a storable record.
// Negative results carry no measurements and are not persisted.
func FromResult(result types.AnalysisResult, imageURL string) *Analysis {
	analysis := &Analysis{
		Breed:        result.Breed,
		WeightKg:     result.WeightKg,
		SizeCategory: string(result.SizeCategory),
		CoatColor:    result.CoatColor,
		Method:       result.Method,
		ImageURL:     imageURL,
		DetectedAt:   time.Now().UTC(),
	}
	if result.Metrics != nil {
		analysis.Posture = string(result.Metrics.Posture)
		analysis.ChestCM = result.Metrics.ChestCM
		analysis.NeckCM = result.Metrics.NeckCM
		analysis.BodyLengthCM = result.Metrics.BodyLengthCM
		analysis.Confidence = result.Metrics.Confidence
		analysis.QualityFlag = string(result.Metrics.QualityFlag)
	}
	return analysis
}

// Filter contains filtering options for querying analyses.
type Filter struct {
	Breed       string
	Size        string
	MinWeightKg float64
	MaxWeightKg float64
	Limit       int
	Offset      int
}

// Store handles SQLite operations.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates and initializes the SQLite store, creating the parent
// directory when needed.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		breed TEXT NOT NULL,
		posture TEXT NOT NULL,
		chest_cm REAL NOT NULL,
		neck_cm REAL NOT NULL,
		body_length_cm REAL NOT NULL,
		weight_kg REAL NOT NULL,
		size_category TEXT NOT NULL,
		coat_color TEXT DEFAULT '',
		confidence REAL NOT NULL,
		quality_flag TEXT NOT NULL,
		method TEXT NOT NULL,
		image_url TEXT DEFAULT '',
		detected_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_breed ON analyses(breed);
	CREATE INDEX IF NOT EXISTS idx_analyses_size ON analyses(size_category);
	CREATE INDEX IF NOT EXISTS idx_analyses_detected_at ON analyses(detected_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert adds a new analysis record and returns its id. A zero DetectedAt
// is stamped with the current time.
func (s *Store) Insert(analysis *Analysis) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if analysis.DetectedAt.IsZero() {
		analysis.DetectedAt = time.Now().UTC()
	}

	result, err := s.db.Exec(`
		INSERT INTO analyses (breed, posture, chest_cm, neck_cm, body_length_cm,
			weight_kg, size_category, coat_color, confidence, quality_flag, method, image_url, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, analysis.Breed, analysis.Posture, analysis.ChestCM, analysis.NeckCM,
		analysis.BodyLengthCM, analysis.WeightKg, analysis.SizeCategory,
		analysis.CoatColor, analysis.Confidence, analysis.QualityFlag,
		analysis.Method, analysis.ImageURL, analysis.DetectedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	analysis.ID = id

	return id, nil
}

// GetByID retrieves one analysis, or nil when the id is unknown.
func (s *Store) GetByID(id int64) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var analysis Analysis
	err := s.db.QueryRow(`
		SELECT id, breed, posture, chest_cm, neck_cm, body_length_cm,
			weight_kg, size_category, coat_color, confidence, quality_flag, method, image_url, detected_at
		FROM analyses WHERE id = ?
	`, id).Scan(&analysis.ID, &analysis.Breed, &analysis.Posture, &analysis.ChestCM,
		&analysis.NeckCM, &analysis.BodyLengthCM, &analysis.WeightKg,
		&analysis.SizeCategory, &analysis.CoatColor, &analysis.Confidence,
		&analysis.QualityFlag, &analysis.Method, &analysis.ImageURL, &analysis.DetectedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	return &analysis, nil
}

// List retrieves analyses matching the filter, newest first.
func (s *Store) List(filter *Filter) ([]Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, breed, posture, chest_cm, neck_cm, body_length_cm,
			weight_kg, size_category, coat_color, confidence, quality_flag, method, image_url, detected_at
		FROM analyses
		WHERE 1=1
	`
	query, args := applyFilter(query, filter)

	query += " ORDER BY detected_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
		query += " LIMIT -1"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		var analysis Analysis
		err := rows.Scan(&analysis.ID, &analysis.Breed, &analysis.Posture,
			&analysis.ChestCM, &analysis.NeckCM, &analysis.BodyLengthCM,
			&analysis.WeightKg, &analysis.SizeCategory, &analysis.CoatColor,
			&analysis.Confidence, &analysis.QualityFlag, &analysis.Method,
			&analysis.ImageURL, &analysis.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, analysis)
	}

	return analyses, rows.Err()
}

// Count returns the number of analyses matching the filter, ignoring
// limit and offset.
func (s *Store) Count(filter *Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := applyFilter(`SELECT COUNT(*) FROM analyses WHERE 1=1`, filter)

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	return count, nil
}

// applyFilter appends the filter's WHERE clauses to a base query.
func applyFilter(query string, filter *Filter) (string, []interface{}) {
	args := []interface{}{}

	if filter.Breed != "" {
		query += " AND LOWER(breed) LIKE '%' || LOWER(?) || '%'"
		args = append(args, filter.Breed)
	}

	if filter.Size != "" {
		query += " AND size_category = ?"
		args = append(args, filter.Size)
	}

	if filter.MinWeightKg > 0 {
		query += " AND weight_kg >= ?"
		args = append(args, filter.MinWeightKg)
	}

	if filter.MaxWeightKg > 0 {
		query += " AND weight_kg <= ?"
		args = append(args, filter.MaxWeightKg)
	}

	return query, args
}

// Delete removes an analysis record.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	return err
}

// Stats returns aggregate statistics about stored analyses.
func (s *Store) Stats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_analyses"] = total

	var avgWeight float64
	if err := s.db.QueryRow(`SELECT COALESCE(AVG(weight_kg), 0) FROM analyses`).Scan(&avgWeight); err != nil {
		return nil, err
	}
	stats["avg_weight_kg"] = avgWeight

	rows, err := s.db.Query(`SELECT size_category, COUNT(*) FROM analyses GROUP BY size_category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perSize := make(map[string]int)
	for rows.Next() {
		var size string
		var count int
		if err := rows.Scan(&size, &count); err != nil {
			return nil, err
		}
		perSize[size] = count
	}
	stats["per_size"] = perSize

	return stats, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
