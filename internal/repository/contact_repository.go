package repository

import (
	"database/sql"

	"github.com/unclebandit/dripleopard-backend/internal/model"
)

// ContactRepositoryInterface defines the methods the services need
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	ListAll() ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID; returns nil when not found.
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `
        SELECT id, first_name, last_name, phone, email, social_handle, mailing_address, city, timezone
        FROM contacts
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email,
		&c.SocialHandle, &c.MailingAddress, &c.City, &c.Timezone); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) ListAll() ([]model.Contact, error) {
	query := `
        SELECT id, first_name, last_name, phone, email, social_handle, mailing_address, city, timezone
        FROM contacts
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email,
			&c.SocialHandle, &c.MailingAddress, &c.City, &c.Timezone); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
