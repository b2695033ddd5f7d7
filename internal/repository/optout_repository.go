package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/model"
)

type OptOutRepositoryInterface interface {
	// RegisterOptOut deactivates any prior record for (contact, channel) and
	// inserts a new active one. Registering twice leaves exactly one active
	// record.
	RegisterOptOut(o *model.OptOut) error

	// RegisterOptIn appends an inactive record with OptedInAt set; history is
	// never deleted.
	RegisterOptIn(contactID int, channel, reason string) error

	IsOptedOut(contactID int, channel string) (bool, error)
	ListByContact(contactID int) ([]*model.OptOut, error)
}

type OptOutRepository struct {
	DB *sql.DB
}

func (r *OptOutRepository) RegisterOptOut(o *model.OptOut) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        UPDATE opt_outs SET active=FALSE WHERE contact_id=$1 AND channel=$2 AND active=TRUE
    `, o.ContactID, o.Channel); err != nil {
		return err
	}

	now := time.Now()
	o.Active = true
	o.OptedOutAt = &now
	o.CreatedAt = now
	if err := tx.QueryRow(`
        INSERT INTO opt_outs (contact_id, channel, active, reason, source_campaign_id, source_touch_id, opted_out_at, created_at)
        VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7)
        RETURNING id
    `, o.ContactID, o.Channel, o.Reason, o.SourceCampaignID, o.SourceTouchID, o.OptedOutAt, o.CreatedAt).Scan(&o.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OptOutRepository) RegisterOptIn(contactID int, channel, reason string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        UPDATE opt_outs SET active=FALSE WHERE contact_id=$1 AND channel=$2 AND active=TRUE
    `, contactID, channel); err != nil {
		return err
	}

	now := time.Now()
	if _, err := tx.Exec(`
        INSERT INTO opt_outs (contact_id, channel, active, reason, opted_in_at, created_at)
        VALUES ($1, $2, FALSE, $3, $4, $5)
    `, contactID, channel, reason, now, now); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OptOutRepository) IsOptedOut(contactID int, channel string) (bool, error) {
	var one int
	err := r.DB.QueryRow(`
        SELECT 1 FROM opt_outs WHERE contact_id=$1 AND channel=$2 AND active=TRUE LIMIT 1
    `, contactID, channel).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *OptOutRepository) ListByContact(contactID int) ([]*model.OptOut, error) {
	rows, err := r.DB.Query(`
        SELECT id, contact_id, channel, active, reason, source_campaign_id, source_touch_id, opted_out_at, opted_in_at, created_at
        FROM opt_outs WHERE contact_id=$1 ORDER BY id
    `, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.OptOut{}
	for rows.Next() {
		var o model.OptOut
		if err := rows.Scan(&o.ID, &o.ContactID, &o.Channel, &o.Active, &o.Reason,
			&o.SourceCampaignID, &o.SourceTouchID, &o.OptedOutAt, &o.OptedInAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, nil
}

var _ OptOutRepositoryInterface = (*OptOutRepository)(nil)
