package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/queue"
	"github.com/unclebandit/dripleopard-backend/internal/sender"
)

// --- In-memory mock repositories ---
// Mutex-guarded so concurrency tests can hammer them from many goroutines.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	steps     map[int][]model.Step
	counters  map[string]int
	nextID    int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{
		campaigns: map[int]*model.Campaign{},
		steps:     map[int][]model.Step{},
		counters:  map[string]int{},
		nextID:    1,
	}
}

func (m *memCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.BouncePolicy == "" {
		c.BouncePolicy = model.BouncePolicyChannel
	}
	if c.OptOutScope == "" {
		c.OptOutScope = model.OptOutScopeLastChannel
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaignRepo) Update(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (m *memCampaignRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
	delete(m.steps, id)
	return nil
}

func (m *memCampaignRepo) ListCampaigns(offset, limit int, leadType, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := []*model.Campaign{}
	ids := []int{}
	for id := range m.campaigns {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	for _, id := range ids {
		c := m.campaigns[id]
		if leadType != "" && c.LeadType != leadType {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		filtered = append(filtered, &cp)
	}
	total := len(filtered)
	if offset > total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (m *memCampaignRepo) IncrementCounter(campaignID int, counter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[fmt.Sprintf("%d/%s", campaignID, counter)]++
	return nil
}

func (m *memCampaignRepo) counter(campaignID int, counter string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[fmt.Sprintf("%d/%s", campaignID, counter)]
}

func (m *memCampaignRepo) CreateStep(s *model.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	m.nextID++
	m.steps[s.CampaignID] = append(m.steps[s.CampaignID], *s)
	return nil
}

func (m *memCampaignRepo) GetStep(campaignID, stepNumber int) (*model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[campaignID] {
		if s.StepNumber == stepNumber {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCampaignRepo) UpdateStep(s *model.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := m.steps[s.CampaignID]
	for i := range steps {
		if steps[i].ID == s.ID {
			steps[i] = *s
			return nil
		}
	}
	return errors.New("step not found")
}

func (m *memCampaignRepo) DeleteStep(campaignID, stepNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := m.steps[campaignID]
	out := steps[:0]
	found := false
	for _, s := range steps {
		if s.StepNumber == stepNumber {
			found = true
			continue
		}
		if found && s.StepNumber > stepNumber {
			s.StepNumber--
		}
		out = append(out, s)
	}
	if !found {
		return errors.New("step not found")
	}
	m.steps[campaignID] = out
	return nil
}

func (m *memCampaignRepo) ListSteps(campaignID int) ([]model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := append([]model.Step{}, m.steps[campaignID]...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return steps, nil
}

func (m *memCampaignRepo) GetCampaignStats(campaignID int) (map[string]int, error) {
	return map[string]int{}, nil
}

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[int]*model.Contact
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: map[int]*model.Contact{}}
}

func (m *memContactRepo) add(c model.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.ID] = &c
}

func (m *memContactRepo) GetByID(id int) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memContactRepo) ListAll() ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Contact{}
	for _, c := range m.contacts {
		out = append(out, *c)
	}
	return out, nil
}

type memEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[int]*model.Enrollment
	nextID      int
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{enrollments: map[int]*model.Enrollment{}, nextID: 1}
}

func (m *memEnrollmentRepo) Create(e *model.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollments {
		if existing.CampaignID == e.CampaignID && existing.ContactID == e.ContactID {
			return appErrors.ErrDuplicateEnrollment
		}
	}
	e.ID = m.nextID
	m.nextID++
	if e.Status == "" {
		e.Status = model.EnrollmentActive
	}
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m *memEnrollmentRepo) GetByID(id int) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, appErrors.NewEnrollmentNotFound(id)
	}
	cp := *e
	return &cp, nil
}

func (m *memEnrollmentRepo) GetByPair(campaignID, contactID int) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID && e.ContactID == contactID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memEnrollmentRepo) Update(e *model.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[e.ID]; !ok {
		return appErrors.NewEnrollmentNotFound(e.ID)
	}
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m *memEnrollmentRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrollments, id)
	return nil
}

func (m *memEnrollmentRepo) ListByCampaign(campaignID int, status string) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Enrollment{}
	ids := sortedEnrollmentIDs(m.enrollments)
	for _, id := range ids {
		e := m.enrollments[id]
		if e.CampaignID != campaignID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEnrollmentRepo) ListActiveByContact(contactID int) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Enrollment{}
	for _, id := range sortedEnrollmentIDs(m.enrollments) {
		e := m.enrollments[id]
		if e.ContactID != contactID {
			continue
		}
		if e.Status != model.EnrollmentActive && e.Status != model.EnrollmentPaused {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEnrollmentRepo) ClaimDue(now time.Time, lease time.Duration, limit int) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := []*model.Enrollment{}
	for _, e := range m.enrollments {
		if e.Status != model.EnrollmentActive || e.NextTouchAt == nil || e.NextTouchAt.After(now) {
			continue
		}
		if e.ClaimedUntil != nil && e.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextTouchAt.Equal(*due[j].NextTouchAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextTouchAt.Before(*due[j].NextTouchAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	until := now.Add(lease)
	out := []*model.Enrollment{}
	for _, e := range due {
		e.ClaimedUntil = &until
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEnrollmentRepo) ReleaseClaim(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		e.ClaimedUntil = nil
	}
	return nil
}

func (m *memEnrollmentRepo) ListStaleNonTerminal(cutoff time.Time) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Enrollment{}
	for _, id := range sortedEnrollmentIDs(m.enrollments) {
		e := m.enrollments[id]
		if model.TerminalEnrollment(e.Status) {
			continue
		}
		last := e.EnrolledAt
		if e.LastTouchAt != nil {
			last = *e.LastTouchAt
		}
		if last.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEnrollmentRepo) IncrementTouchCounter(id int, counter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return appErrors.NewEnrollmentNotFound(id)
	}
	switch counter {
	case "delivered":
		e.TouchesDelivered++
	case "failed":
		e.TouchesFailed++
	default:
		return fmt.Errorf("unknown touch counter %q", counter)
	}
	return nil
}

func (m *memEnrollmentRepo) RecordResponse(id int, at time.Time, channel, body string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return false, appErrors.NewEnrollmentNotFound(id)
	}
	if e.RespondedAt != nil {
		return false, nil
	}
	e.RespondedAt = &at
	e.ResponseChannel = channel
	e.ResponseBody = body
	return true, nil
}

func (m *memEnrollmentRepo) TransitionStatus(id int, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.NextTouchAt = nil
	e.ClaimedUntil = nil
	return true, nil
}

func (m *memEnrollmentRepo) MarkConverted(id int, from string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = model.EnrollmentConverted
	e.ConvertedAt = &at
	e.NextTouchAt = nil
	e.ClaimedUntil = nil
	return true, nil
}

func (m *memEnrollmentRepo) MarkAutoPaused(id int, at time.Time, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != model.EnrollmentActive {
		return false, nil
	}
	e.Status = model.EnrollmentPaused
	e.PausedAt = &at
	e.PauseReason = reason
	e.NextTouchAt = nil
	e.ClaimedUntil = nil
	return true, nil
}

func sortedEnrollmentIDs(m map[int]*model.Enrollment) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type memTouchRepo struct {
	mu      sync.Mutex
	touches map[int]*model.Touch
	nextID  int
}

func newMemTouchRepo() *memTouchRepo {
	return &memTouchRepo{touches: map[int]*model.Touch{}, nextID: 1}
}

func (m *memTouchRepo) Create(t *model.Touch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	cp := *t
	m.touches[t.ID] = &cp
	return nil
}

func (m *memTouchRepo) GetByID(id int) (*model.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.touches[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTouchRepo) Update(t *model.Touch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.touches[t.ID]; !ok {
		return errors.New("touch not found")
	}
	cp := *t
	m.touches[t.ID] = &cp
	return nil
}

func (m *memTouchRepo) GetInFlight(enrollmentID, stepNumber int) (*model.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sortedTouchIDs(m.touches) {
		t := m.touches[id]
		if t.EnrollmentID == enrollmentID && t.StepNumber == stepNumber && model.TouchInFlight(t.Status) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTouchRepo) GetByKey(enrollmentID, stepNumber int) (*model.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := sortedTouchIDs(m.touches)
	for i := len(ids) - 1; i >= 0; i-- {
		t := m.touches[ids[i]]
		if t.EnrollmentID == enrollmentID && t.StepNumber == stepNumber {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTouchRepo) GetByProviderMessageID(providerID string) (*model.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sortedTouchIDs(m.touches) {
		t := m.touches[id]
		if t.ProviderMessageID == providerID && providerID != "" {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTouchRepo) ListByEnrollment(enrollmentID int) ([]*model.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Touch{}
	for _, id := range sortedTouchIDs(m.touches) {
		t := m.touches[id]
		if t.EnrollmentID == enrollmentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTouchRepo) MarkSending(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.touches[id]
	if !ok || t.Status != model.TouchPending {
		return false, nil
	}
	t.Status = model.TouchSending
	return true, nil
}

func (m *memTouchRepo) CancelPending(enrollmentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.touches {
		if t.EnrollmentID == enrollmentID && model.TouchInFlight(t.Status) {
			t.Status = model.TouchCanceled
		}
	}
	return nil
}

func sortedTouchIDs(m map[int]*model.Touch) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type memOptOutRepo struct {
	mu      sync.Mutex
	records []*model.OptOut
	nextID  int
}

func newMemOptOutRepo() *memOptOutRepo {
	return &memOptOutRepo{nextID: 1}
}

func (m *memOptOutRepo) RegisterOptOut(o *model.OptOut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ContactID == o.ContactID && r.Channel == o.Channel {
			r.Active = false
		}
	}
	now := time.Now()
	o.ID = m.nextID
	m.nextID++
	o.Active = true
	o.OptedOutAt = &now
	cp := *o
	m.records = append(m.records, &cp)
	return nil
}

func (m *memOptOutRepo) RegisterOptIn(contactID int, channel, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ContactID == contactID && r.Channel == channel {
			r.Active = false
		}
	}
	now := time.Now()
	m.records = append(m.records, &model.OptOut{
		ID: m.nextID, ContactID: contactID, Channel: channel,
		Reason: reason, OptedInAt: &now,
	})
	m.nextID++
	return nil
}

func (m *memOptOutRepo) IsOptedOut(contactID int, channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ContactID == contactID && r.Channel == channel && r.Active {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOptOutRepo) ListByContact(contactID int) ([]*model.OptOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.OptOut{}
	for _, r := range m.records {
		if r.ContactID == contactID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memCreditRepo mirrors the real ledger semantics: a single balance, escrowed
// reservations and an append-only signed transaction log.
type memCreditRepo struct {
	mu           sync.Mutex
	balance      model.CreditBalance
	reservations map[string]*model.CreditReservation
	transactions []*model.CreditTransaction
	nextResID    int
	nextTxID     int
}

func newMemCreditRepo() *memCreditRepo {
	return &memCreditRepo{
		balance:      model.CreditBalance{ID: 1},
		reservations: map[string]*model.CreditReservation{},
		nextResID:    1,
		nextTxID:     1,
	}
}

func (m *memCreditRepo) GetBalance() (*model.CreditBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balance
	return &b, nil
}

func (m *memCreditRepo) append(txType string, amount int64, reservationID, packageID, reason string) {
	m.transactions = append(m.transactions, &model.CreditTransaction{
		ID: m.nextTxID, Type: txType, AmountCents: amount,
		BalanceAfterCents: m.balance.BalanceCents,
		ReservationID:     reservationID, PackageID: packageID, Reason: reason,
	})
	m.nextTxID++
}

func (m *memCreditRepo) Reserve(amountCents int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance.BalanceCents < amountCents {
		return "", &appErrors.InsufficientBalanceError{NeededCents: amountCents, AvailableCents: m.balance.BalanceCents}
	}
	id := fmt.Sprintf("res-%d", m.nextResID)
	m.nextResID++
	m.balance.BalanceCents -= amountCents
	m.balance.ReservedCents += amountCents
	m.reservations[id] = &model.CreditReservation{ID: id, AmountCents: amountCents, Status: model.ReservationHeld}
	m.append(model.TxReserve, -amountCents, id, "", "")
	return id, nil
}

func (m *memCreditRepo) Commit(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	if !ok || r.Status != model.ReservationHeld {
		return nil // idempotent
	}
	r.Status = model.ReservationCommitted
	m.balance.ReservedCents -= r.AmountCents
	m.balance.LifetimeUsedCents += r.AmountCents
	m.append(model.TxCommit, 0, reservationID, "", "")
	return nil
}

func (m *memCreditRepo) Release(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	if !ok || r.Status != model.ReservationHeld {
		return nil // idempotent
	}
	r.Status = model.ReservationReleased
	m.balance.ReservedCents -= r.AmountCents
	m.balance.BalanceCents += r.AmountCents
	m.append(model.TxRelease, r.AmountCents, reservationID, "", "")
	return nil
}

func (m *memCreditRepo) Purchase(amountCents int64, packageID string) (*model.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance.BalanceCents += amountCents
	m.balance.LifetimePurchasedCents += amountCents
	m.append(model.TxPurchase, amountCents, "", packageID, "")
	return m.transactions[len(m.transactions)-1], nil
}

func (m *memCreditRepo) Refund(transactionID int, reason string) (*model.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purchase *model.CreditTransaction
	for _, t := range m.transactions {
		if t.ID == transactionID {
			purchase = t
			break
		}
	}
	if purchase == nil {
		return nil, errors.New("transaction not found")
	}
	if purchase.Type != model.TxPurchase {
		return nil, appErrors.NewValidation("transaction_id", "only purchases can be refunded")
	}
	for _, t := range m.transactions {
		if t.Type == model.TxRefund && t.RefundOf == transactionID {
			return nil, appErrors.NewValidation("transaction_id", "already refunded")
		}
	}
	m.balance.BalanceCents -= purchase.AmountCents
	m.balance.LifetimePurchasedCents -= purchase.AmountCents
	m.append(model.TxRefund, -purchase.AmountCents, "", "", reason)
	m.transactions[len(m.transactions)-1].RefundOf = transactionID
	return m.transactions[len(m.transactions)-1], nil
}

func (m *memCreditRepo) ListTransactions() ([]*model.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.CreditTransaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// memQueue records published jobs instead of executing them.
type memQueue struct {
	mu   sync.Mutex
	jobs []queue.TouchJob
}

func (q *memQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := payload.(queue.TouchJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Subscribe(topic string, handler func(payload any) error) error {
	return nil
}

func (q *memQueue) published() []queue.TouchJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.TouchJob{}, q.jobs...)
}

// stubSender counts dispatches and can be scripted to fail.
type stubSender struct {
	mu        sync.Mutex
	sent      []sender.OutboundTouch
	permanent bool
	transient bool
	delivered bool
	messageID string
}

func (s *stubSender) Send(ctx context.Context, touch sender.OutboundTouch) (*sender.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permanent {
		return nil, &appErrors.SendFailure{Permanent: true, Channel: touch.Channel, Err: errors.New("hard bounce")}
	}
	if s.transient {
		return nil, &appErrors.SendFailure{Channel: touch.Channel, Err: errors.New("provider timeout")}
	}
	s.sent = append(s.sent, touch)
	id := s.messageID
	if id == "" {
		id = fmt.Sprintf("msg-%d", len(s.sent))
	}
	return &sender.Result{ProviderMessageID: id, Delivered: s.delivered}, nil
}

func (s *stubSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
