package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
)

type EnrollmentRepositoryInterface interface {
	Create(e *model.Enrollment) error
	GetByID(id int) (*model.Enrollment, error)
	GetByPair(campaignID, contactID int) (*model.Enrollment, error)
	Update(e *model.Enrollment) error
	Delete(id int) error
	ListByCampaign(campaignID int, status string) ([]*model.Enrollment, error)
	ListActiveByContact(contactID int) ([]*model.Enrollment, error)

	// ClaimDue atomically leases due enrollments for one scheduler pass.
	ClaimDue(now time.Time, lease time.Duration, limit int) ([]*model.Enrollment, error)
	ReleaseClaim(id int) error

	// ListStaleNonTerminal finds enrollments with no touch activity since the
	// cutoff, for the expiry sweep.
	ListStaleNonTerminal(cutoff time.Time) ([]*model.Enrollment, error)

	// Field-level writes for the ingestor, which runs concurrently with the
	// scheduler and executor. A whole-row Update from a webhook handler could
	// clobber an advance that landed between the handler's read and write,
	// walking current_step/next_touch_at back to an already-sent step.
	IncrementTouchCounter(id int, counter string) error
	RecordResponse(id int, at time.Time, channel, body string) (bool, error)
	TransitionStatus(id int, from, to string) (bool, error)
	MarkConverted(id int, from string, at time.Time) (bool, error)
	MarkAutoPaused(id int, at time.Time, reason string) (bool, error)
}

type EnrollmentRepository struct {
	DB *sql.DB
}

var enrollmentCols = `id, campaign_id, contact_id, deal_id, status, current_step, next_touch_at,
        claimed_until, enrolled_at, enrolled_by, touches_sent, touches_delivered, touches_failed,
        last_touch_at, last_touch_channel, responded_at, response_channel, response_body,
        converted_at, paused_at, pause_reason, low_balance_flag, context, created_at, updated_at`

func scanEnrollment(row interface{ Scan(...any) error }) (*model.Enrollment, error) {
	var e model.Enrollment
	var ctxRaw []byte
	err := row.Scan(
		&e.ID, &e.CampaignID, &e.ContactID, &e.DealID, &e.Status, &e.CurrentStep, &e.NextTouchAt,
		&e.ClaimedUntil, &e.EnrolledAt, &e.EnrolledBy, &e.TouchesSent, &e.TouchesDelivered, &e.TouchesFailed,
		&e.LastTouchAt, &e.LastTouchChannel, &e.RespondedAt, &e.ResponseChannel, &e.ResponseBody,
		&e.ConvertedAt, &e.PausedAt, &e.PauseReason, &e.LowBalanceFlag, &ctxRaw, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(ctxRaw) > 0 {
		if err := json.Unmarshal(ctxRaw, &e.Context); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func contextJSON(e *model.Enrollment) ([]byte, error) {
	if e.Context == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Context)
}

// Create inserts an enrollment. The unique (campaign_id, contact_id) index
// backs the duplicate-enrollment guard; a violation maps to
// ErrDuplicateEnrollment.
func (r *EnrollmentRepository) Create(e *model.Enrollment) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = model.EnrollmentActive
	}
	ctxRaw, err := contextJSON(e)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO enrollments (campaign_id, contact_id, deal_id, status, current_step,
            next_touch_at, enrolled_at, enrolled_by, context, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `
	err = r.DB.QueryRow(query,
		e.CampaignID, e.ContactID, e.DealID, e.Status, e.CurrentStep,
		e.NextTouchAt, e.EnrolledAt, e.EnrolledBy, ctxRaw, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return appErrors.ErrDuplicateEnrollment
	}
	return err
}

func (r *EnrollmentRepository) GetByID(id int) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.DB.QueryRow(`SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewEnrollmentNotFound(id)
		}
		return nil, err
	}
	return e, nil
}

func (r *EnrollmentRepository) GetByPair(campaignID, contactID int) (*model.Enrollment, error) {
	row := r.DB.QueryRow(`SELECT `+enrollmentCols+` FROM enrollments WHERE campaign_id=$1 AND contact_id=$2`,
		campaignID, contactID)
	e, err := scanEnrollment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *EnrollmentRepository) Update(e *model.Enrollment) error {
	e.UpdatedAt = time.Now()
	ctxRaw, err := contextJSON(e)
	if err != nil {
		return err
	}
	query := `
        UPDATE enrollments
        SET status=$1, current_step=$2, next_touch_at=$3, claimed_until=$4,
            touches_sent=$5, touches_delivered=$6, touches_failed=$7,
            last_touch_at=$8, last_touch_channel=$9, responded_at=$10, response_channel=$11,
            response_body=$12, converted_at=$13, paused_at=$14, pause_reason=$15,
            low_balance_flag=$16, context=$17, updated_at=$18
        WHERE id=$19
    `
	_, err = r.DB.Exec(query,
		e.Status, e.CurrentStep, e.NextTouchAt, e.ClaimedUntil,
		e.TouchesSent, e.TouchesDelivered, e.TouchesFailed,
		e.LastTouchAt, e.LastTouchChannel, e.RespondedAt, e.ResponseChannel,
		e.ResponseBody, e.ConvertedAt, e.PausedAt, e.PauseReason,
		e.LowBalanceFlag, ctxRaw, e.UpdatedAt, e.ID,
	)
	return err
}

func (r *EnrollmentRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM enrollments WHERE id=$1`, id)
	return err
}

func (r *EnrollmentRepository) ListByCampaign(campaignID int, status string) ([]*model.Enrollment, error) {
	query := `SELECT ` + enrollmentCols + ` FROM enrollments WHERE campaign_id=$1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *EnrollmentRepository) ListActiveByContact(contactID int) ([]*model.Enrollment, error) {
	rows, err := r.DB.Query(`SELECT `+enrollmentCols+` FROM enrollments WHERE contact_id=$1 AND status IN ('active', 'paused') ORDER BY id`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ClaimDue takes the scheduler lease on every due, unclaimed active
// enrollment, up to limit, in deterministic (next_touch_at, id) order.
// FOR UPDATE SKIP LOCKED lets concurrent workers race without blocking;
// the claimed_until predicate keeps expired leases reclaimable after a
// worker crash.
func (r *EnrollmentRepository) ClaimDue(now time.Time, lease time.Duration, limit int) ([]*model.Enrollment, error) {
	until := now.Add(lease)
	query := `
        UPDATE enrollments SET claimed_until=$1, updated_at=$1
        WHERE id IN (
            SELECT id FROM enrollments
            WHERE status='active'
              AND next_touch_at IS NOT NULL
              AND next_touch_at <= $2
              AND (claimed_until IS NULL OR claimed_until < $2)
            ORDER BY next_touch_at, id
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + enrollmentCols

	rows, err := r.DB.Query(query, until, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claimed := []*model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (r *EnrollmentRepository) ReleaseClaim(id int) error {
	_, err := r.DB.Exec(`UPDATE enrollments SET claimed_until=NULL, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// IncrementTouchCounter bumps one of the touch counters in place, without
// reading or rewriting the rest of the row.
func (r *EnrollmentRepository) IncrementTouchCounter(id int, counter string) error {
	var column string
	switch counter {
	case "delivered":
		column = "touches_delivered"
	case "failed":
		column = "touches_failed"
	default:
		return fmt.Errorf("unknown touch counter %q", counter)
	}
	_, err := r.DB.Exec(`UPDATE enrollments SET `+column+` = `+column+` + 1, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// RecordResponse stamps first-response metadata. Reports false when a
// response was already recorded, so only the first reply wins.
func (r *EnrollmentRepository) RecordResponse(id int, at time.Time, channel, body string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE enrollments
        SET responded_at=$2, response_channel=$3, response_body=$4, updated_at=NOW()
        WHERE id=$1 AND responded_at IS NULL
    `, id, at, channel, body)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TransitionStatus conditionally moves the enrollment from one status to
// another, clearing scheduling state. Reports false when the row no longer
// has the expected status (a concurrent writer got there first).
func (r *EnrollmentRepository) TransitionStatus(id int, from, to string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE enrollments
        SET status=$2, next_touch_at=NULL, claimed_until=NULL, updated_at=NOW()
        WHERE id=$1 AND status=$3
    `, id, to, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkConverted is TransitionStatus to converted plus the converted_at stamp.
func (r *EnrollmentRepository) MarkConverted(id int, from string, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE enrollments
        SET status='converted', converted_at=$2, next_touch_at=NULL, claimed_until=NULL, updated_at=NOW()
        WHERE id=$1 AND status=$3
    `, id, at, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkAutoPaused pauses an active enrollment on an inbound response.
func (r *EnrollmentRepository) MarkAutoPaused(id int, at time.Time, reason string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE enrollments
        SET status='paused', paused_at=$2, pause_reason=$3, next_touch_at=NULL, claimed_until=NULL, updated_at=NOW()
        WHERE id=$1 AND status='active'
    `, id, at, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *EnrollmentRepository) ListStaleNonTerminal(cutoff time.Time) ([]*model.Enrollment, error) {
	query := `
        SELECT ` + enrollmentCols + ` FROM enrollments
        WHERE status NOT IN ('completed', 'converted', 'opted_out', 'expired')
          AND COALESCE(last_touch_at, enrolled_at) < $1
        ORDER BY id
    `
	rows, err := r.DB.Query(query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

var _ EnrollmentRepositoryInterface = (*EnrollmentRepository)(nil)
