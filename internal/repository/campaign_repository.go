package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	Update(c *model.Campaign) error
	UpdateStatus(campaignID int, status string) error
	Delete(id int) error
	ListCampaigns(offset, limit int, leadType, status string) ([]*model.Campaign, int, error)
	IncrementCounter(campaignID int, counter string) error

	// Steps
	CreateStep(s *model.Step) error
	GetStep(campaignID, stepNumber int) (*model.Step, error)
	UpdateStep(s *model.Step) error
	DeleteStep(campaignID, stepNumber int) error
	ListSteps(campaignID int) ([]model.Step, error)

	// Enrollment status counts for the campaign detail view
	GetCampaignStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

var campaignCols = `id, name, status, lead_type, owner_id, quiet_hours_start, quiet_hours_end,
        timezone, skip_weekends, auto_pause_on_response, auto_convert_on_response,
        bounce_policy, opt_out_scope, enrolled_count, responded_count, converted_count,
        opted_out_count, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Status, &c.LeadType, &c.OwnerID, &c.QuietHoursStart, &c.QuietHoursEnd,
		&c.Timezone, &c.SkipWeekends, &c.AutoPauseOnResponse, &c.AutoConvertOnResponse,
		&c.BouncePolicy, &c.OptOutScope, &c.EnrolledCount, &c.RespondedCount, &c.ConvertedCount,
		&c.OptedOutCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.BouncePolicy == "" {
		c.BouncePolicy = model.BouncePolicyChannel
	}
	if c.OptOutScope == "" {
		c.OptOutScope = model.OptOutScopeLastChannel
	}
	query := `
        INSERT INTO campaigns (name, status, lead_type, owner_id, quiet_hours_start, quiet_hours_end,
            timezone, skip_weekends, auto_pause_on_response, auto_convert_on_response,
            bounce_policy, opt_out_scope, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Status, c.LeadType, c.OwnerID, c.QuietHoursStart, c.QuietHoursEnd,
		c.Timezone, c.SkipWeekends, c.AutoPauseOnResponse, c.AutoConvertOnResponse,
		c.BouncePolicy, c.OptOutScope, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	c, err := scanCampaign(r.DB.QueryRow(`SELECT `+campaignCols+` FROM campaigns WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, status=$2, lead_type=$3, quiet_hours_start=$4, quiet_hours_end=$5,
            timezone=$6, skip_weekends=$7, auto_pause_on_response=$8, auto_convert_on_response=$9,
            bounce_policy=$10, opt_out_scope=$11, updated_at=NOW()
        WHERE id=$12
    `
	_, err := r.DB.Exec(query,
		c.Name, c.Status, c.LeadType, c.QuietHoursStart, c.QuietHoursEnd,
		c.Timezone, c.SkipWeekends, c.AutoPauseOnResponse, c.AutoConvertOnResponse,
		c.BouncePolicy, c.OptOutScope, c.ID,
	)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`, status, campaignID)
	return err
}

func (r *CampaignRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM campaigns WHERE id=$1`, id)
	return err
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, leadType, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignCols + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if leadType != "" {
		query += fmt.Sprintf(" AND lead_type=$%d", argPos)
		args = append(args, leadType)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if leadType != "" {
		countQuery += fmt.Sprintf(" AND lead_type=$%d", argPosCount)
		argsCount = append(argsCount, leadType)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// counterColumns whitelists the derived campaign counters so IncrementCounter
// can never interpolate arbitrary SQL.
var counterColumns = map[string]string{
	"enrolled":  "enrolled_count",
	"responded": "responded_count",
	"converted": "converted_count",
	"opted_out": "opted_out_count",
}

func (r *CampaignRepository) IncrementCounter(campaignID int, counter string) error {
	col, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	query := fmt.Sprintf(`UPDATE campaigns SET %s=%s+1, updated_at=NOW() WHERE id=$1`, col, col)
	_, err := r.DB.Exec(query, campaignID)
	return err
}

// ====================== Steps ======================

var stepCols = `id, campaign_id, step_number, delay_days, delay_from_enrollment, channel,
        subject, body_template, piece_type, piece_cost_cents, skip_if_responded,
        skip_if_converted, active, created_at, updated_at`

func scanStep(row interface{ Scan(...any) error }) (*model.Step, error) {
	var s model.Step
	err := row.Scan(
		&s.ID, &s.CampaignID, &s.StepNumber, &s.DelayDays, &s.DelayFromEnrollment, &s.Channel,
		&s.Subject, &s.BodyTemplate, &s.PieceType, &s.PieceCostCents, &s.SkipIfResponded,
		&s.SkipIfConverted, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CampaignRepository) CreateStep(s *model.Step) error {
	s.CreatedAt = time.Now()
	query := `
        INSERT INTO campaign_steps (campaign_id, step_number, delay_days, delay_from_enrollment,
            channel, subject, body_template, piece_type, piece_cost_cents,
            skip_if_responded, skip_if_converted, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		s.CampaignID, s.StepNumber, s.DelayDays, s.DelayFromEnrollment,
		s.Channel, s.Subject, s.BodyTemplate, s.PieceType, s.PieceCostCents,
		s.SkipIfResponded, s.SkipIfConverted, s.Active, s.CreatedAt,
	).Scan(&s.ID)
}

func (r *CampaignRepository) GetStep(campaignID, stepNumber int) (*model.Step, error) {
	row := r.DB.QueryRow(`SELECT `+stepCols+` FROM campaign_steps WHERE campaign_id=$1 AND step_number=$2`,
		campaignID, stepNumber)
	s, err := scanStep(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *CampaignRepository) UpdateStep(s *model.Step) error {
	query := `
        UPDATE campaign_steps
        SET delay_days=$1, delay_from_enrollment=$2, channel=$3, subject=$4, body_template=$5,
            piece_type=$6, piece_cost_cents=$7, skip_if_responded=$8, skip_if_converted=$9,
            active=$10, updated_at=NOW()
        WHERE id=$11
    `
	_, err := r.DB.Exec(query,
		s.DelayDays, s.DelayFromEnrollment, s.Channel, s.Subject, s.BodyTemplate,
		s.PieceType, s.PieceCostCents, s.SkipIfResponded, s.SkipIfConverted,
		s.Active, s.ID,
	)
	return err
}

// DeleteStep removes a step and renumbers the remaining steps so step_number
// stays contiguous, all in one transaction.
func (r *CampaignRepository) DeleteStep(campaignID, stepNumber int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM campaign_steps WHERE campaign_id=$1 AND step_number=$2`,
		campaignID, stepNumber)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("step %d not found for campaign %d", stepNumber, campaignID)
	}

	_, err = tx.Exec(`
        UPDATE campaign_steps SET step_number=step_number-1, updated_at=NOW()
        WHERE campaign_id=$1 AND step_number>$2
    `, campaignID, stepNumber)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CampaignRepository) ListSteps(campaignID int) ([]model.Step, error) {
	rows, err := r.DB.Query(`SELECT `+stepCols+` FROM campaign_steps WHERE campaign_id=$1 ORDER BY step_number`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []model.Step{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *s)
	}
	return steps, nil
}

func (r *CampaignRepository) GetCampaignStats(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(`SELECT status, COUNT(*) FROM enrollments WHERE campaign_id=$1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"active": 0, "paused": 0, "completed": 0, "responded": 0,
		"converted": 0, "opted_out": 0, "bounced": 0, "expired": 0,
	}
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		total += count
	}
	stats["total"] = total
	return stats, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
