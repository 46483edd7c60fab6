package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

// engineMock is an in-memory stand-in for the enrollment store. RunInTx
// invokes the callback under a mutex, standing in for the activity row
// lock; the tx handle is never dereferenced by the mock methods.
type engineMock struct {
	mu          sync.Mutex
	activities  map[string]models.EnrollableActivity
	unapproved  map[string]bool
	enrollments map[string]models.Enrollment
	seq         int
	txErr       error
	txAttempts  int
}

func newEngineMock() *engineMock {
	return &engineMock{
		activities:  make(map[string]models.EnrollableActivity),
		unapproved:  make(map[string]bool),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (m *engineMock) addActivity(id, title string, start time.Time, duration time.Duration, capacity int) {
	m.activities[id] = models.EnrollableActivity{
		ID: id, Title: title, StartTime: start, EndTime: start.Add(duration), Capacity: capacity,
	}
}

func (m *engineMock) addPendingActivity(id, title string, start time.Time, duration time.Duration, capacity int) {
	m.addActivity(id, title, start, duration, capacity)
	m.unapproved[id] = true
}

func (m *engineMock) suspend(id string) {
	m.unapproved[id] = true
}

func (m *engineMock) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txAttempts++
	if m.txErr != nil {
		return m.txErr
	}
	return fn(nil)
}

func (m *engineMock) LockEnrollable(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error) {
	if m.unapproved[activityID] {
		return nil, nil
	}
	if activity, ok := m.activities[activityID]; ok {
		return &activity, nil
	}
	return nil, nil
}

func (m *engineMock) LockExisting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error) {
	if activity, ok := m.activities[activityID]; ok {
		return &activity, nil
	}
	return nil, nil
}

func (m *engineMock) LockActivity(ctx context.Context, tx *sqlx.Tx, activityID string) error {
	return nil
}

func (m *engineMock) HasClaim(ctx context.Context, tx *sqlx.Tx, activityID, student string) (bool, error) {
	for _, e := range m.enrollments {
		if e.ActivityID == activityID && e.Student == student &&
			(e.Status == models.EnrollmentStatusActive || e.Status == models.EnrollmentStatusWaiting) {
			return true, nil
		}
	}
	return false, nil
}

func (m *engineMock) CountActive(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error) {
	count := 0
	for _, e := range m.enrollments {
		if e.ActivityID == activityID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count, nil
}

func (m *engineMock) NextPosition(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error) {
	max := 0
	for _, e := range m.enrollments {
		if e.ActivityID == activityID && e.Status == models.EnrollmentStatusWaiting && e.Position > max {
			max = e.Position
		}
	}
	return max + 1, nil
}

func (m *engineMock) HeadWaiting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.Enrollment, error) {
	var head *models.Enrollment
	for id := range m.enrollments {
		e := m.enrollments[id]
		if e.ActivityID != activityID || e.Status != models.EnrollmentStatusWaiting {
			continue
		}
		if head == nil || e.Position < head.Position {
			copy := e
			head = &copy
		}
	}
	return head, nil
}

func (m *engineMock) Promote(ctx context.Context, tx *sqlx.Tx, id string) error {
	e := m.enrollments[id]
	e.Status = models.EnrollmentStatusActive
	e.Position = 0
	m.enrollments[id] = e
	return nil
}

func (m *engineMock) Insert(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		m.seq++
		enrollment.ID = fmt.Sprintf("enr-%d", m.seq)
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *engineMock) MarkCancelled(ctx context.Context, tx *sqlx.Tx, id string) error {
	e := m.enrollments[id]
	e.Status = models.EnrollmentStatusCancelled
	e.Position = 0
	m.enrollments[id] = e
	return nil
}

func (m *engineMock) GetInTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *engineMock) ActiveSchedule(ctx context.Context, tx *sqlx.Tx, student string) ([]models.ScheduleItem, error) {
	var items []models.ScheduleItem
	for _, e := range m.enrollments {
		if e.Student != student || e.Status != models.EnrollmentStatusActive {
			continue
		}
		activity, ok := m.activities[e.ActivityID]
		if !ok {
			continue
		}
		items = append(items, models.ScheduleItem{
			ActivityID: activity.ID,
			Title:      activity.Title,
			StartTime:  activity.StartTime,
			EndTime:    activity.EndTime,
		})
	}
	return items, nil
}

func (m *engineMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *engineMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func newEngine(t *testing.T, repo *engineMock) *EnrollmentService {
	t.Helper()
	return NewEnrollmentService(repo, nil, nil, nil, nil)
}

var testDay = time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestEnrollTakesFreeSeat(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 30)
	svc := newEngine(t, repo)

	result, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeEnrolled, result.Outcome)
	assert.Equal(t, models.EnrollmentStatusActive, result.Enrollment.Status)
	assert.Equal(t, 0, result.Enrollment.Position)
}

func TestEnrollFullActivityWaitlists(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	first, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	require.Equal(t, models.OutcomeEnrolled, first.Outcome)

	second, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWaitlisted, second.Outcome)
	assert.Equal(t, 1, second.Enrollment.Position)

	third, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "carol"})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Enrollment.Position)

	// Active count never exceeds capacity.
	active, err := repo.CountActive(context.Background(), nil, "act-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestEnrollRejectsDuplicateClaim(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))

	// A waitlisted claim blocks re-enrollment just like an active one.
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestEnrollDuplicateClaimOutranksSuspendedActivity(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 5)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)

	// The activity leaves APPROVED; alice still holds a claim, and that is
	// what a re-enrollment attempt must report.
	repo.suspend("act-1")
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))

	// Students without a claim see the suspension.
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEnrollable))
}

func TestEnrollUnknownActivity(t *testing.T) {
	svc := newEngine(t, newEngineMock())

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "missing", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEnrollable))
}

func TestEnrollScheduleConflict(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Morning Run", at(10, 0), time.Hour, 30)
	repo.addActivity("act-2", "Debate Club", at(10, 30), time.Hour, 30)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "alice"})
	require.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
	appErr := appErrors.FromError(err)
	require.Len(t, appErr.Details, 1)
	assert.Contains(t, appErr.Details[0], "Debate Club")
	assert.Contains(t, appErr.Details[0], "Morning Run")
}

func TestEnrollTouchingWindowsDoNotConflict(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Morning Run", at(10, 0), time.Hour, 30)
	repo.addActivity("act-2", "Debate Club", at(11, 0), time.Hour, 30)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	result, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeEnrolled, result.Outcome)
}

func TestEnrollConflictCheckedEvenWhenFull(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Morning Run", at(10, 0), time.Hour, 30)
	repo.addActivity("act-2", "Debate Club", at(10, 30), time.Hour, 1)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "bob"})
	require.NoError(t, err)

	// act-2 is now full, but alice's overlap must surface as a conflict,
	// not a silent waitlist entry.
	_, err = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
}

func TestCancelActivePromotesHeadOfWaitlist(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	a, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	b, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	require.NoError(t, err)
	c, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "carol"})
	require.NoError(t, err)
	require.Equal(t, 1, b.Enrollment.Position)
	require.Equal(t, 2, c.Enrollment.Position)

	result, err := svc.Cancel(context.Background(), a.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, result.Enrollment.Status)
	require.NotNil(t, result.Promoted)
	assert.Equal(t, "bob", result.Promoted.Student)
	assert.Equal(t, models.EnrollmentStatusActive, result.Promoted.Status)
	assert.Equal(t, 0, result.Promoted.Position)

	// carol stays waiting.
	carol := repo.enrollments[c.Enrollment.ID]
	assert.Equal(t, models.EnrollmentStatusWaiting, carol.Status)
	assert.Equal(t, 2, carol.Position)
}

func TestCancelWaitingNeverPromotes(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	b, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	require.NoError(t, err)
	c, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "carol"})
	require.NoError(t, err)

	result, err := svc.Cancel(context.Background(), b.Enrollment.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Promoted)

	carol := repo.enrollments[c.Enrollment.ID]
	assert.Equal(t, models.EnrollmentStatusWaiting, carol.Status)
}

func TestCancelIsIdempotent(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 5)
	svc := newEngine(t, repo)

	a, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)

	first, err := svc.Cancel(context.Background(), a.Enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusCancelled, first.Enrollment.Status)

	second, err := svc.Cancel(context.Background(), a.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, second.Enrollment.Status)
	assert.Nil(t, second.Promoted)
}

func TestCancelUnknownEnrollment(t *testing.T) {
	svc := newEngine(t, newEngineMock())

	_, err := svc.Cancel(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestJoinWaitlistSkipsCapacityAndConflictChecks(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Morning Run", at(10, 0), time.Hour, 30)
	repo.addActivity("act-2", "Debate Club", at(10, 30), time.Hour, 30)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)

	// Seats are free and the window overlaps alice's schedule; joining the
	// queue is still accepted.
	result, err := svc.JoinWaitlist(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWaitlisted, result.Outcome)
	assert.Equal(t, 1, result.Enrollment.Position)

	_, err = svc.JoinWaitlist(context.Background(), EnrollRequest{ActivityID: "act-2", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestJoinWaitlistAcceptsUnapprovedActivity(t *testing.T) {
	repo := newEngineMock()
	repo.addPendingActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	// Enroll gates on approval; the waitlist only requires existence.
	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.True(t, appErrors.Is(err, appErrors.ErrNotEnrollable))

	result, err := svc.JoinWaitlist(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWaitlisted, result.Outcome)
	assert.Equal(t, 1, result.Enrollment.Position)
}

func TestJoinWaitlistUnknownActivity(t *testing.T) {
	svc := newEngine(t, newEngineMock())

	_, err := svc.JoinWaitlist(context.Background(), EnrollRequest{ActivityID: "missing", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotEnrollable))
}

func TestWaitlistPositionReflectsRemainingQueue(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	require.NoError(t, err)
	b, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "bob"})
	require.NoError(t, err)

	// bob leaves the queue; the next joiner takes position 1 again since
	// positions count only rows still waiting.
	_, err = svc.Cancel(context.Background(), b.Enrollment.ID)
	require.NoError(t, err)

	c, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "carol"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Enrollment.Position)
}

func TestConcurrentEnrollRespectsCapacity(t *testing.T) {
	const (
		capacity = 3
		students = 8
	)
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, capacity)
	svc := newEngine(t, repo)

	results := make([]*models.EnrollResult, students)
	errs := make([]error, students)
	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			student := fmt.Sprintf("student-%d", i)
			results[i], errs[i] = svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: student})
		}(i)
	}
	wg.Wait()

	enrolled := 0
	positions := make(map[int]bool)
	for i := 0; i < students; i++ {
		require.NoError(t, errs[i])
		switch results[i].Outcome {
		case models.OutcomeEnrolled:
			enrolled++
		case models.OutcomeWaitlisted:
			positions[results[i].Enrollment.Position] = true
		}
	}

	// Exactly capacity seats are filled; everyone else queues on a
	// distinct position 1..N-C.
	assert.Equal(t, capacity, enrolled)
	require.Len(t, positions, students-capacity)
	for p := 1; p <= students-capacity; p++ {
		assert.True(t, positions[p], "missing waitlist position %d", p)
	}

	active, err := repo.CountActive(context.Background(), nil, "act-1")
	require.NoError(t, err)
	assert.Equal(t, capacity, active)
}

func TestEnrollSurfacesContentionAsTransient(t *testing.T) {
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	repo.txErr = &pq.Error{Code: "40001"}
	svc := newEngine(t, repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "alice"})
	assert.True(t, appErrors.Is(err, appErrors.ErrTransient))
	assert.Equal(t, 3, repo.txAttempts)
}

func TestCapacityOneScenario(t *testing.T) {
	// Three students contend for one seat; the seat moves down the queue
	// as cancellations free it.
	repo := newEngineMock()
	repo.addActivity("act-1", "Chess Open", at(9, 0), 2*time.Hour, 1)
	svc := newEngine(t, repo)

	a, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "A"})
	require.NoError(t, err)
	require.Equal(t, models.OutcomeEnrolled, a.Outcome)

	b, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "B"})
	require.NoError(t, err)
	require.Equal(t, models.OutcomeWaitlisted, b.Outcome)

	c, err := svc.Enroll(context.Background(), EnrollRequest{ActivityID: "act-1", Student: "C"})
	require.NoError(t, err)
	require.Equal(t, 2, c.Enrollment.Position)

	cancelA, err := svc.Cancel(context.Background(), a.Enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelA.Promoted)
	require.Equal(t, "B", cancelA.Promoted.Student)

	cancelB, err := svc.Cancel(context.Background(), b.Enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelB.Promoted)
	require.Equal(t, "C", cancelB.Promoted.Student)

	active, err := repo.CountActive(context.Background(), nil, "act-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}
