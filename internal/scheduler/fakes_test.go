package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// In-memory store implementations for engine tests.  Mutators mirror
// the SQL repositories' compare-and-swap semantics so the engine sees
// the same failure taxonomy without a database.

type memShiftStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Shift
}

func newMemShiftStore() *memShiftStore {
	return &memShiftStore{rows: map[uint64]model.Shift{}}
}

func (s *memShiftStore) Create(_ context.Context, sh *model.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sh.ID = s.nextID
	s.rows[sh.ID] = *sh
	return nil
}

func (s *memShiftStore) GetByID(_ context.Context, id uint64) (*model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *memShiftStore) UpdateStatus(_ context.Context, id uint64, from, to model.ShiftStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if row.Status != from {
		return ErrInvalidTransition
	}
	row.Status = to
	s.rows[id] = row
	return nil
}

func (s *memShiftStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memShiftStore) DecrementSpots(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if row.Spots <= 0 {
		return ErrCapacity
	}
	row.Spots--
	s.rows[id] = row
	return nil
}

func (s *memShiftStore) IncrementSpots(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	row.Spots++
	s.rows[id] = row
	return nil
}

func (s *memShiftStore) List(_ context.Context, status model.ShiftStatus) ([]model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Shift
	for _, row := range s.rows {
		if status == "" || row.Status == status {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memCommitmentStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Commitment
}

func newMemCommitmentStore() *memCommitmentStore {
	return &memCommitmentStore{rows: map[uint64]model.Commitment{}}
}

func (s *memCommitmentStore) Create(_ context.Context, c *model.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.rows[c.ID] = *c
	return nil
}

func (s *memCommitmentStore) GetByID(_ context.Context, id uint64) (*model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *memCommitmentStore) ListByUserAndShift(_ context.Context, username string, shiftID uint64) ([]model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Commitment
	for _, row := range s.rows {
		if row.Username == username && row.ShiftID == shiftID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memCommitmentStore) ListActiveByUser(_ context.Context, username string) ([]model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Commitment
	for _, row := range s.rows {
		if row.Username == username && row.Status.Active() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memCommitmentStore) ListByShift(_ context.Context, shiftID uint64, status model.CommitmentStatus) ([]model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Commitment
	for _, row := range s.rows {
		if row.ShiftID == shiftID && (status == "" || row.Status == status) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memCommitmentStore) Approve(_ context.Context, id uint64, approver string, approvedAt, canCancelUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if row.Status != model.CommitmentPending {
		return ErrInvalidTransition
	}
	row.Status = model.CommitmentApproved
	row.ApprovedAt = &approvedAt
	row.ApprovedBy = &approver
	row.CanCancelUntil = &canCancelUntil
	s.rows[id] = row
	return nil
}

func (s *memCommitmentStore) Reject(_ context.Context, id uint64) error {
	return s.swap(id, model.CommitmentPending, model.CommitmentRejected)
}

func (s *memCommitmentStore) Cancel(_ context.Context, id uint64) error {
	return s.swap(id, model.CommitmentApproved, model.CommitmentCancelled)
}

func (s *memCommitmentStore) swap(id uint64, from, to model.CommitmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if row.Status != from {
		return ErrInvalidTransition
	}
	row.Status = to
	s.rows[id] = row
	return nil
}

func (s *memCommitmentStore) CancelAllForShift(_ context.Context, shiftID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.ShiftID == shiftID && row.Status.Active() {
			row.Status = model.CommitmentCancelled
			s.rows[id] = row
		}
	}
	return nil
}

type memUserStore struct {
	mu      sync.Mutex
	credits map[string]int
	staff   []string
}

func newMemUserStore(staff ...string) *memUserStore {
	return &memUserStore{credits: map[string]int{}, staff: staff}
}

func (s *memUserStore) IncrementCredits(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[username]++
	return nil
}

func (s *memUserStore) StaffUsernames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.staff...), nil
}

func (s *memUserStore) creditsOf(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[username]
}

// manualClock pins engine time to an instant the test controls.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock { return &manualClock{now: now} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// chanNotifier forwards each delivery to a channel so tests can wait
// for the engine's fire-and-forget goroutine.
type notification struct {
	Recipients []string
	Subject    string
	Body       string
}

type chanNotifier struct {
	ch chan notification
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan notification, 16)}
}

func (n *chanNotifier) Notify(_ context.Context, recipients []string, subject, body string) error {
	n.ch <- notification{Recipients: recipients, Subject: subject, Body: body}
	return nil
}
