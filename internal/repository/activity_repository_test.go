package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-activity-api/internal/models"
)

func TestActivityRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM activities WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	activity, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, activity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "title", "category", "location", "start_time", "end_time",
		"capacity", "status", "creator", "approver", "created_at", "updated_at", "enrolled_count",
	}).AddRow("act-1", "Chess Open", "sports", "Hall A", start, start.Add(2*time.Hour),
		30, models.ActivityStatusApproved, "init-1", nil, start, start, 12)

	mock.ExpectQuery(regexp.QuoteMeta("a.status = $1")).
		WithArgs(models.ActivityStatusApproved).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activities")).
		WithArgs(models.ActivityStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	activities, total, err := repo.List(context.Background(), models.ActivityFilter{Status: models.ActivityStatusApproved})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, activities, 1)
	require.Equal(t, 12, activities[0].EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	approver := "admin-1"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE activities SET status = $2, approver = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("act-1", models.ActivityStatusApproved, &approver, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "act-1", models.ActivityStatusApproved, &approver)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
