package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

var (
	manager   = Identity{Username: "mia", Role: model.RoleManager}
	admin     = Identity{Username: "ade", Role: model.RoleAdmin}
	volunteer = Identity{Username: "vera", Role: model.RoleVolunteer}
)

// testEngine bundles an engine with its fakes so assertions can reach
// into store state.
type testEngine struct {
	*Engine
	shifts      *memShiftStore
	commitments *memCommitmentStore
	users       *memUserStore
	clock       *manualClock
	notifier    *chanNotifier
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	te := &testEngine{
		shifts:      newMemShiftStore(),
		commitments: newMemCommitmentStore(),
		users:       newMemUserStore("mia", "ade"),
		clock:       newManualClock(time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)),
		notifier:    newChanNotifier(),
	}
	te.Engine = New(te.shifts, te.commitments, te.users,
		DefaultPermissions(), te.notifier, te.clock, nil)
	return te
}

func (te *testEngine) createShift(t *testing.T, in CreateShiftInput) *model.Shift {
	t.Helper()
	s, err := te.CreateShift(context.Background(), manager, in)
	require.NoError(t, err)
	return s
}

// publishedShift walks a fresh shift through draft -> validated ->
// published so commitment tests start from a signable shift.
func (te *testEngine) publishedShift(t *testing.T, in CreateShiftInput) *model.Shift {
	t.Helper()
	s := te.createShift(t, in)
	_, err := te.ValidateShift(context.Background(), admin, s.ID)
	require.NoError(t, err)
	s, err = te.PublishShift(context.Background(), manager, s.ID)
	require.NoError(t, err)
	return s
}

func saturdayMorning() CreateShiftInput {
	return CreateShiftInput{
		Title:     "Saturday morning floor",
		Date:      "2025-11-15",
		StartTime: "09:00",
		EndTime:   "13:00",
		Spots:     2,
		Location:  "Main store",
	}
}

func TestCreateShiftValidation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateShiftInput)
	}{
		{"empty title", func(in *CreateShiftInput) { in.Title = "" }},
		{"zero spots", func(in *CreateShiftInput) { in.Spots = 0 }},
		{"negative spots", func(in *CreateShiftInput) { in.Spots = -3 }},
		{"bad date", func(in *CreateShiftInput) { in.Date = "15/11/2025" }},
		{"bad start time", func(in *CreateShiftInput) { in.StartTime = "9am" }},
		{"end equals start", func(in *CreateShiftInput) { in.EndTime = in.StartTime }},
		{"end before start", func(in *CreateShiftInput) { in.StartTime = "13:00"; in.EndTime = "09:00" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := saturdayMorning()
			tc.mutate(&in)
			_, err := te.CreateShift(ctx, manager, in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	s := te.createShift(t, saturdayMorning())
	assert.Equal(t, model.ShiftDraft, s.Status)
	assert.Equal(t, manager.Username, s.CreatedBy)
	assert.NotZero(t, s.ID)
}

func TestShiftLifecycleTransitions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.createShift(t, saturdayMorning())

	// Publishing a draft skips validation and must fail.
	_, err := te.PublishShift(ctx, manager, s.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	s, err = te.ValidateShift(ctx, admin, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShiftValidated, s.Status)

	// Validating twice must fail.
	_, err = te.ValidateShift(ctx, admin, s.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	s, err = te.PublishShift(ctx, manager, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShiftPublished, s.Status)

	_, err = te.ValidateShift(ctx, admin, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestShiftRolePermissions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.createShift(t, saturdayMorning())

	// Managers may not validate, admins may not publish, volunteers
	// may not touch the lifecycle at all.
	_, err := te.ValidateShift(ctx, manager, s.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = te.ValidateShift(ctx, admin, s.ID)
	require.NoError(t, err)

	_, err = te.PublishShift(ctx, admin, s.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = te.CreateShift(ctx, volunteer, saturdayMorning())
	require.ErrorIs(t, err, ErrForbidden)
	err = te.CancelShift(ctx, volunteer, s.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPublishNotifiesStaff(t *testing.T) {
	te := newTestEngine(t)
	te.publishedShift(t, saturdayMorning())

	select {
	case n := <-te.notifier.ch:
		assert.Equal(t, []string{"mia", "ade"}, n.Recipients)
		assert.Contains(t, n.Subject, "Saturday morning floor")
	case <-time.After(2 * time.Second):
		t.Fatal("no publish notification delivered")
	}
}

func TestSignupHappyPath(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())

	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	require.False(t, res.Overlap)
	require.NotNil(t, res.Commitment)
	assert.Equal(t, model.CommitmentPending, res.Commitment.Status)
	assert.Equal(t, volunteer.Username, res.Commitment.Username)
	assert.Equal(t, te.clock.Now(), res.Commitment.VolunteeredAt)

	// Spots are consumed at approval, not at signup.
	got, err := te.shifts.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Spots)
}

func TestSignupPreconditions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	t.Run("missing shift", func(t *testing.T) {
		_, err := te.Signup(ctx, volunteer, 404)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unpublished shift", func(t *testing.T) {
		draft := te.createShift(t, saturdayMorning())
		_, err := te.Signup(ctx, volunteer, draft.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("staff may not sign up", func(t *testing.T) {
		s := te.publishedShift(t, saturdayMorning())
		_, err := te.Signup(ctx, manager, s.ID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("duplicate active signup", func(t *testing.T) {
		s := te.publishedShift(t, saturdayMorning())
		_, err := te.Signup(ctx, volunteer, s.ID)
		require.NoError(t, err)
		_, err = te.Signup(ctx, volunteer, s.ID)
		require.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestRejectedSignupBlocksForever(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())

	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	_, err = te.Review(ctx, manager, res.Commitment.ID, false)
	require.NoError(t, err)

	_, err = te.Signup(ctx, volunteer, s.ID)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestSignupAfterCancellationAllowed(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())

	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	_, err = te.Review(ctx, manager, res.Commitment.ID, true)
	require.NoError(t, err)
	_, err = te.CancelCommitment(ctx, volunteer, res.Commitment.ID)
	require.NoError(t, err)

	// A cancelled commitment is terminal but not a block: the
	// volunteer may take the freed spot again.
	res2, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentPending, res2.Commitment.Status)
}

func TestSignupFullShift(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	in := saturdayMorning()
	in.Spots = 1
	s := te.publishedShift(t, in)

	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	_, err = te.Review(ctx, manager, res.Commitment.ID, true)
	require.NoError(t, err)

	other := Identity{Username: "walt", Role: model.RoleVolunteer}
	_, err = te.Signup(ctx, other, s.ID)
	require.ErrorIs(t, err, ErrCapacity)
}

func TestSignupOverlapReturnsAlternatives(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	morning := te.publishedShift(t, saturdayMorning())
	res, err := te.Signup(ctx, volunteer, morning.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Commitment)

	// Overlaps the held morning shift by one hour.
	clash := saturdayMorning()
	clash.Title = "Midday restock"
	clash.StartTime = "12:00"
	clash.EndTime = "16:00"
	clashing := te.publishedShift(t, clash)

	// Clear of the schedule; should come back as an alternative.
	evening := saturdayMorning()
	evening.Title = "Evening close"
	evening.StartTime = "17:00"
	evening.EndTime = "21:00"
	alt := te.publishedShift(t, evening)

	res, err = te.Signup(ctx, volunteer, clashing.ID)
	require.NoError(t, err)
	assert.True(t, res.Overlap)
	assert.Nil(t, res.Commitment)
	require.NotNil(t, res.Conflicting)
	assert.Equal(t, morning.ID, res.Conflicting.ID)
	require.Len(t, res.Alternatives, 1)
	assert.Equal(t, alt.ID, res.Alternatives[0].ID)

	// An overlap outcome creates nothing, so retrying after the
	// conflict clears must work.
	require.NoError(t, te.CancelShift(ctx, admin, morning.ID))
	res, err = te.Signup(ctx, volunteer, clashing.ID)
	require.NoError(t, err)
	assert.False(t, res.Overlap)
	require.NotNil(t, res.Commitment)
}

func TestBackToBackShiftsDoNotOverlap(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	morning := te.publishedShift(t, saturdayMorning())
	_, err := te.Signup(ctx, volunteer, morning.ID)
	require.NoError(t, err)

	next := saturdayMorning()
	next.Title = "Afternoon floor"
	next.StartTime = "13:00"
	next.EndTime = "17:00"
	afternoon := te.publishedShift(t, next)

	res, err := te.Signup(ctx, volunteer, afternoon.ID)
	require.NoError(t, err)
	assert.False(t, res.Overlap)
	require.NotNil(t, res.Commitment)
}

func TestReviewApprove(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())
	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)

	approvedAt := te.clock.Now()
	c, err := te.Review(ctx, manager, res.Commitment.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentApproved, c.Status)
	require.NotNil(t, c.ApprovedAt)
	assert.Equal(t, approvedAt, *c.ApprovedAt)
	require.NotNil(t, c.ApprovedBy)
	assert.Equal(t, manager.Username, *c.ApprovedBy)
	require.NotNil(t, c.CanCancelUntil)
	assert.Equal(t, approvedAt.Add(CancelWindow), *c.CanCancelUntil)

	got, err := te.shifts.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Spots)
	assert.Equal(t, 1, te.users.creditsOf(volunteer.Username))

	// Volunteers may not review; resolved commitments stay resolved.
	_, err = te.Review(ctx, volunteer, c.ID, true)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = te.Review(ctx, manager, c.ID, false)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReviewReject(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())
	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)

	c, err := te.Review(ctx, manager, res.Commitment.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentRejected, c.Status)
	assert.Nil(t, c.CanCancelUntil)

	// Rejection costs no spot and earns no credit.
	got, err := te.shifts.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Spots)
	assert.Equal(t, 0, te.users.creditsOf(volunteer.Username))
}

func TestApprovalRaceForLastSpot(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	in := saturdayMorning()
	in.Spots = 1
	s := te.publishedShift(t, in)

	first, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	second, err := te.Signup(ctx, Identity{Username: "walt", Role: model.RoleVolunteer}, s.ID)
	require.NoError(t, err)

	_, err = te.Review(ctx, manager, first.Commitment.ID, true)
	require.NoError(t, err)

	// The second approval loses the race for the last spot and the
	// commitment stays pending.
	_, err = te.Review(ctx, manager, second.Commitment.ID, true)
	require.ErrorIs(t, err, ErrCapacity)
	c, err := te.commitments.GetByID(ctx, second.Commitment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentPending, c.Status)
}

func TestCancelCommitmentWindow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())
	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	c, err := te.Review(ctx, manager, res.Commitment.ID, true)
	require.NoError(t, err)

	t.Run("owner only", func(t *testing.T) {
		other := Identity{Username: "walt", Role: model.RoleVolunteer}
		_, err := te.CancelCommitment(ctx, other, c.ID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("exactly at the deadline succeeds", func(t *testing.T) {
		te.clock.Set(*c.CanCancelUntil)
		cancelled, err := te.CancelCommitment(ctx, volunteer, c.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CommitmentCancelled, cancelled.Status)

		// Spot restored, credit kept.
		got, err := te.shifts.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Spots)
		assert.Equal(t, 1, te.users.creditsOf(volunteer.Username))
	})

	t.Run("past the deadline fails", func(t *testing.T) {
		res, err := te.Signup(ctx, volunteer, s.ID)
		require.NoError(t, err)
		c, err := te.Review(ctx, manager, res.Commitment.ID, true)
		require.NoError(t, err)

		te.clock.Set(c.CanCancelUntil.Add(time.Second))
		_, err = te.CancelCommitment(ctx, volunteer, c.ID)
		require.ErrorIs(t, err, ErrWindowExpired)

		got, err := te.commitments.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CommitmentApproved, got.Status)
	})
}

func TestCancelPendingCommitmentFails(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())
	res, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)

	_, err = te.CancelCommitment(ctx, volunteer, res.Commitment.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelShiftCascades(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())

	pending, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	approvedRes, err := te.Signup(ctx, Identity{Username: "walt", Role: model.RoleVolunteer}, s.ID)
	require.NoError(t, err)
	approved, err := te.Review(ctx, manager, approvedRes.Commitment.ID, true)
	require.NoError(t, err)

	require.NoError(t, te.CancelShift(ctx, admin, s.ID))

	_, err = te.shifts.GetByID(ctx, s.ID)
	require.ErrorIs(t, err, ErrNotFound)
	for _, id := range []uint64{pending.Commitment.ID, approved.ID} {
		c, err := te.commitments.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.CommitmentCancelled, c.Status)
	}

	err = te.CancelShift(ctx, admin, s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListShiftsVisibility(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	draft := te.createShift(t, saturdayMorning())
	published := te.publishedShift(t, saturdayMorning())

	// Volunteers only ever see published shifts, whatever they ask for.
	got, err := te.ListShifts(ctx, volunteer, model.ShiftDraft)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, published.ID, got[0].ID)

	got, err = te.ListShifts(ctx, manager, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = te.ListShifts(ctx, manager, model.ShiftDraft)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, draft.ID, got[0].ID)
}

func TestListCommitmentsForShift(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	s := te.publishedShift(t, saturdayMorning())

	_, err := te.Signup(ctx, volunteer, s.ID)
	require.NoError(t, err)
	res, err := te.Signup(ctx, Identity{Username: "walt", Role: model.RoleVolunteer}, s.ID)
	require.NoError(t, err)
	_, err = te.Review(ctx, manager, res.Commitment.ID, true)
	require.NoError(t, err)

	all, err := te.ListCommitmentsForShift(ctx, manager, s.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := te.ListCommitmentsForShift(ctx, manager, s.ID, model.CommitmentPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, volunteer.Username, pending[0].Username)

	_, err = te.ListCommitmentsForShift(ctx, volunteer, s.ID, "")
	require.ErrorIs(t, err, ErrForbidden)
}
