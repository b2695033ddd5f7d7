package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/model"
)

type TouchRepositoryInterface interface {
	Create(t *model.Touch) error
	GetByID(id int) (*model.Touch, error)
	Update(t *model.Touch) error

	// GetInFlight returns the pending/sending touch for the key, if any.
	// Backing the at-most-once-in-flight guarantee.
	GetInFlight(enrollmentID, stepNumber int) (*model.Touch, error)
	GetByKey(enrollmentID, stepNumber int) (*model.Touch, error)
	GetByProviderMessageID(providerID string) (*model.Touch, error)
	ListByEnrollment(enrollmentID int) ([]*model.Touch, error)

	// MarkSending conditionally claims a pending touch for execution. Returns
	// false when the touch is no longer pending (another worker got it, or it
	// already finished) so re-delivered jobs cannot double-send.
	MarkSending(id int) (bool, error)

	// CancelPending flips any in-flight touches of the enrollment to canceled,
	// used on removal.
	CancelPending(enrollmentID int) error
}

type TouchRepository struct {
	DB *sql.DB
}

var touchCols = `id, enrollment_id, step_number, channel, status, scheduled_at, sent_at,
        delivered_at, failed_at, provider_message_id, retry_count, last_retry_at,
        response_received, response_at, response_body, error_message, rendered_content,
        piece_type, cost_cents, tracking_number, reservation_id, created_at, updated_at`

func scanTouch(row interface{ Scan(...any) error }) (*model.Touch, error) {
	var t model.Touch
	err := row.Scan(
		&t.ID, &t.EnrollmentID, &t.StepNumber, &t.Channel, &t.Status, &t.ScheduledAt, &t.SentAt,
		&t.DeliveredAt, &t.FailedAt, &t.ProviderMessageID, &t.RetryCount, &t.LastRetryAt,
		&t.ResponseReceived, &t.ResponseAt, &t.ResponseBody, &t.ErrorMessage, &t.RenderedContent,
		&t.PieceType, &t.CostCents, &t.TrackingNumber, &t.ReservationID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TouchRepository) Create(t *model.Touch) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	query := `
        INSERT INTO touches (enrollment_id, step_number, channel, status, scheduled_at,
            provider_message_id, retry_count, error_message, rendered_content,
            piece_type, cost_cents, tracking_number, reservation_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		t.EnrollmentID, t.StepNumber, t.Channel, t.Status, t.ScheduledAt,
		t.ProviderMessageID, t.RetryCount, t.ErrorMessage, t.RenderedContent,
		t.PieceType, t.CostCents, t.TrackingNumber, t.ReservationID, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
}

func (r *TouchRepository) GetByID(id int) (*model.Touch, error) {
	t, err := scanTouch(r.DB.QueryRow(`SELECT `+touchCols+` FROM touches WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TouchRepository) Update(t *model.Touch) error {
	t.UpdatedAt = time.Now()
	query := `
        UPDATE touches
        SET status=$1, sent_at=$2, delivered_at=$3, failed_at=$4, provider_message_id=$5,
            retry_count=$6, last_retry_at=$7, response_received=$8, response_at=$9,
            response_body=$10, error_message=$11, rendered_content=$12, tracking_number=$13,
            reservation_id=$14, updated_at=$15
        WHERE id=$16
    `
	_, err := r.DB.Exec(query,
		t.Status, t.SentAt, t.DeliveredAt, t.FailedAt, t.ProviderMessageID,
		t.RetryCount, t.LastRetryAt, t.ResponseReceived, t.ResponseAt,
		t.ResponseBody, t.ErrorMessage, t.RenderedContent, t.TrackingNumber,
		t.ReservationID, t.UpdatedAt, t.ID,
	)
	return err
}

func (r *TouchRepository) GetInFlight(enrollmentID, stepNumber int) (*model.Touch, error) {
	row := r.DB.QueryRow(`
        SELECT `+touchCols+` FROM touches
        WHERE enrollment_id=$1 AND step_number=$2 AND status IN ('pending', 'sending')
        LIMIT 1
    `, enrollmentID, stepNumber)
	t, err := scanTouch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetByKey returns the latest touch for (enrollment, step), terminal or not.
func (r *TouchRepository) GetByKey(enrollmentID, stepNumber int) (*model.Touch, error) {
	row := r.DB.QueryRow(`
        SELECT `+touchCols+` FROM touches
        WHERE enrollment_id=$1 AND step_number=$2
        ORDER BY id DESC
        LIMIT 1
    `, enrollmentID, stepNumber)
	t, err := scanTouch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TouchRepository) GetByProviderMessageID(providerID string) (*model.Touch, error) {
	row := r.DB.QueryRow(`SELECT `+touchCols+` FROM touches WHERE provider_message_id=$1`, providerID)
	t, err := scanTouch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TouchRepository) ListByEnrollment(enrollmentID int) ([]*model.Touch, error) {
	rows, err := r.DB.Query(`SELECT `+touchCols+` FROM touches WHERE enrollment_id=$1 ORDER BY id`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Touch{}
	for rows.Next() {
		t, err := scanTouch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TouchRepository) MarkSending(id int) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE touches SET status='sending', updated_at=NOW()
        WHERE id=$1 AND status='pending'
    `, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *TouchRepository) CancelPending(enrollmentID int) error {
	_, err := r.DB.Exec(`
        UPDATE touches SET status='canceled', updated_at=NOW()
        WHERE enrollment_id=$1 AND status IN ('pending', 'sending')
    `, enrollmentID)
	return err
}

var _ TouchRepositoryInterface = (*TouchRepository)(nil)
