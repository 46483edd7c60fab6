package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-activity-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryLockEnrollable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "title", "start_time", "end_time", "capacity"}).
		AddRow("act-1", "Chess Open", start, start.Add(2*time.Hour), 30)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, start_time, end_time, capacity FROM activities WHERE id = $1 AND status = 'APPROVED' FOR UPDATE")).
		WithArgs("act-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		activity, err := repo.LockEnrollable(context.Background(), tx, "act-1")
		require.NoError(t, err)
		require.NotNil(t, activity)
		require.Equal(t, 30, activity.Capacity)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockEnrollableNotApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("act-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "start_time", "end_time", "capacity"}))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		activity, err := repo.LockEnrollable(context.Background(), tx, "act-2")
		require.NoError(t, err)
		require.Nil(t, activity)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockExistingIgnoresStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	// The waitlist lock carries no status filter, so a pending activity
	// still returns its row.
	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "title", "start_time", "end_time", "capacity"}).
		AddRow("act-3", "Robotics Lab", start, start.Add(2*time.Hour), 10)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, start_time, end_time, capacity FROM activities WHERE id = $1 FOR UPDATE")).
		WithArgs("act-3").
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		activity, err := repo.LockExisting(context.Background(), tx, "act-3")
		require.NoError(t, err)
		require.NotNil(t, activity)
		require.Equal(t, "Robotics Lab", activity.Title)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryNextPositionEmptyWaitlist(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), 0) + 1 FROM enrollments WHERE activity_id = $1 AND status = 'WAITING'")).
		WithArgs("act-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		position, err := repo.NextPosition(context.Background(), tx, "act-1")
		require.NoError(t, err)
		require.Equal(t, 1, position)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHeadWaiting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "activity_id", "student", "created_at", "status", "position"}).
		AddRow("enr-7", "act-1", "alice", time.Now(), models.EnrollmentStatusWaiting, 1)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC LIMIT 1")).
		WithArgs("act-1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'ACTIVE', position = 0 WHERE id = $1")).
		WithArgs("enr-7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		head, err := repo.HeadWaiting(context.Background(), tx, "act-1")
		require.NoError(t, err)
		require.NotNil(t, head)
		require.Equal(t, "alice", head.Student)
		return repo.Promote(context.Background(), tx, head.ID)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasClaim(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('ACTIVE', 'WAITING') LIMIT 1")).
		WithArgs("act-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		held, err := repo.HasClaim(context.Background(), tx, "act-1", "alice")
		require.NoError(t, err)
		require.True(t, held)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRunInTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryActiveSchedule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"activity_id", "title", "start_time", "end_time"}).
		AddRow("act-1", "Chess Open", start, start.Add(2*time.Hour)).
		AddRow("act-2", "Robotics Lab", start.Add(3*time.Hour), start.Add(5*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student = $1 AND e.status = 'ACTIVE' AND a.status <> 'CANCELLED'")).
		WithArgs("alice").
		WillReturnRows(rows)
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		items, err := repo.ActiveSchedule(context.Background(), tx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.False(t, items[0].Window().Overlaps(items[1].Window()))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
