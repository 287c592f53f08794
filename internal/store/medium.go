package store

import (
	"database/sql"
	"fmt"
)

// Medium is the durable key-value storage behind a Store. Save fully
// overwrites the named slot.
type Medium interface {
	Load(slot string) ([]byte, bool, error)
	Save(slot string, payload []byte) error
}

// SQLiteMedium keeps each slot as one row of the slots table. Every Store
// opened over the same database file shares the same slots.
type SQLiteMedium struct {
	db *sql.DB
}

func NewSQLiteMedium(db *sql.DB) *SQLiteMedium {
	return &SQLiteMedium{db: db}
}

func (m *SQLiteMedium) Load(slot string) ([]byte, bool, error) {
	var payload string
	err := m.db.QueryRow("SELECT payload FROM slots WHERE name = ?", slot).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query slot: %w", err)
	}
	return []byte(payload), true, nil
}

func (m *SQLiteMedium) Save(slot string, payload []byte) error {
	_, err := m.db.Exec(
		`INSERT INTO slots (name, payload) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		slot, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save slot: %w", err)
	}
	return nil
}
