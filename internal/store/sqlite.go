package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pbaille/nutriscan/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("already exists")
)

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer at a time keeps concurrent signups serialized
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user with an already hashed password
func (s *Store) CreateUser(username, passwordHash string) (*domain.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		id, username, passwordHash, now,
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("user %q: %w", username, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetUser retrieves a user by username
func (s *Store) GetUser(username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SaveProfile creates or replaces a user's profile
func (s *Store) SaveProfile(userID string, p *domain.UserProfile) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO profiles (user_id, name, age, gender, allergies, health_conditions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			gender = excluded.gender,
			allergies = excluded.allergies,
			health_conditions = excluded.health_conditions,
			updated_at = excluded.updated_at
	`, userID, p.Name, p.Age, p.Gender, strings.Join(p.Allergies.List(), ","), p.HealthConditions, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a user's profile
func (s *Store) GetProfile(userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var allergies string
	err := s.db.QueryRow(
		"SELECT name, age, gender, allergies, health_conditions, updated_at FROM profiles WHERE user_id = ?",
		userID,
	).Scan(&p.Name, &p.Age, &p.Gender, &allergies, &p.HealthConditions, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var names []string
	if allergies != "" {
		names = strings.Split(allergies, ",")
	}
	p.Allergies = domain.NewAllergySet(names)
	return &p, nil
}

// PutLogDay sets the foods for one day, replacing what was there
func (s *Store) PutLogDay(userID, day string, items []string) error {
	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO food_logs (user_id, day, items, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at
	`, userID, day, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put log day: %w", err)
	}
	return nil
}

// ReplaceLog swaps a user's whole log in one transaction
func (s *Store) ReplaceLog(userID string, log domain.FoodLog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM food_logs WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear log: %w", err)
	}

	now := time.Now().UTC()
	for _, e := range log.Entries() {
		encoded, err := json.Marshal(e.Items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}
		if _, err := tx.Exec(
			"INSERT INTO food_logs (user_id, day, items, updated_at) VALUES (?, ?, ?, ?)",
			userID, e.Date, string(encoded), now,
		); err != nil {
			return fmt.Errorf("insert log day: %w", err)
		}
	}

	return tx.Commit()
}

// GetLog returns a user's whole food log
func (s *Store) GetLog(userID string) (domain.FoodLog, error) {
	rows, err := s.db.Query("SELECT day, items FROM food_logs WHERE user_id = ? ORDER BY day", userID)
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer rows.Close()

	log := domain.FoodLog{}
	for rows.Next() {
		var day, encoded string
		if err := rows.Scan(&day, &encoded); err != nil {
			return nil, fmt.Errorf("scan log day: %w", err)
		}
		var items []string
		if err := json.Unmarshal([]byte(encoded), &items); err != nil {
			return nil, fmt.Errorf("decode items for %s: %w", day, err)
		}
		log[day] = items
	}

	return log, rows.Err()
}

// DeleteLogDay removes one day from a user's log
func (s *Store) DeleteLogDay(userID, day string) error {
	res, err := s.db.Exec("DELETE FROM food_logs WHERE user_id = ? AND day = ?", userID, day)
	if err != nil {
		return fmt.Errorf("delete log day: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("log day %s: %w", day, ErrNotFound)
	}
	return nil
}

// SaveAssessment records a prediction, filling in ID and CreatedAt
func (s *Store) SaveAssessment(a *domain.Assessment) error {
	features, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err = s.db.Exec(
		"INSERT INTO assessments (id, user_id, label, bmi, food_score, features, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.UserID, string(a.Label), a.BMI, a.FoodScore, string(features), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// ListAssessments returns a user's most recent assessments first
func (s *Store) ListAssessments(userID string, limit int) ([]domain.Assessment, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, label, bmi, food_score, features, created_at FROM assessments WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assessment
	for rows.Next() {
		var a domain.Assessment
		var label, features string
		if err := rows.Scan(&a.ID, &a.UserID, &label, &a.BMI, &a.FoodScore, &features, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Label = domain.Label(label)
		if err := json.Unmarshal([]byte(features), &a.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}
