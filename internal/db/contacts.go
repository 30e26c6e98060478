package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/models"
)

// ContactStore persists emergency contacts.
//
// Expected schema:
//
//	CREATE TABLE emergency_contacts (
//	    id          TEXT PRIMARY KEY,
//	    reporter_id TEXT NOT NULL,
//	    user_id     TEXT,
//	    name        TEXT NOT NULL,
//	    phone       TEXT,
//	    email       TEXT,
//	    chat_id     BIGINT,
//	    relation    TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type ContactStore struct {
	db *DB
}

func NewContactStore(db *DB) *ContactStore {
	return &ContactStore{db: db}
}

// Create inserts a new contact, generating its id.
func (s *ContactStore) Create(ctx context.Context, c models.EmergencyContact) (models.EmergencyContact, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()

	query := `
	INSERT INTO emergency_contacts (id, reporter_id, user_id, name, phone, email, chat_id, relation, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Pool.Exec(ctx, query,
		c.ID, c.ReporterID, c.UserID, c.Name, c.Phone, c.Email, c.ChatID, c.Relation, c.CreatedAt)
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to create emergency contact: %w", err)
	}
	return c, nil
}

// ListByReporter returns every contact registered for a reporter.
func (s *ContactStore) ListByReporter(ctx context.Context, reporterID string) ([]models.EmergencyContact, error) {
	query := `
	SELECT id, reporter_id, user_id, name, phone, email, chat_id, relation, created_at
	FROM emergency_contacts
	WHERE reporter_id = $1
	ORDER BY created_at`

	rows, err := s.db.Pool.Query(ctx, query, reporterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts for reporter %s: %w", reporterID, err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ID, &c.ReporterID, &c.UserID, &c.Name, &c.Phone, &c.Email, &c.ChatID, &c.Relation, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Delete removes a contact owned by reporterID.
func (s *ContactStore) Delete(ctx context.Context, reporterID, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM emergency_contacts WHERE id = $1 AND reporter_id = $2`, id, reporterID)
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s not found", id)
	}
	return nil
}
