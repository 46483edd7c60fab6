package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-activity-api/internal/models"
)

type sweepMock struct {
	items []models.StudentScheduleItem
}

func (m *sweepMock) ListAllActiveSchedule(ctx context.Context) ([]models.StudentScheduleItem, error) {
	return m.items, nil
}

func scheduleItem(id, title string, start time.Time, duration time.Duration) models.ScheduleItem {
	return models.ScheduleItem{ActivityID: id, Title: title, StartTime: start, EndTime: start.Add(duration)}
}

func TestFindConflictsReportsOverlap(t *testing.T) {
	candidate := scheduleItem("act-2", "Debate Club", at(10, 30), time.Hour)
	existing := []models.ScheduleItem{
		scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour),
		scheduleItem("act-3", "Evening Yoga", at(18, 0), time.Hour),
	}

	conflicts := FindConflicts(candidate, existing)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Debate Club", conflicts[0].FirstTitle)
	assert.Equal(t, "Morning Run", conflicts[0].OtherTitle)
	assert.Contains(t, conflicts[0].Description(), "overlaps")
}

func TestFindConflictsIsSymmetric(t *testing.T) {
	a := scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour)
	b := scheduleItem("act-2", "Debate Club", at(10, 30), time.Hour)

	assert.Len(t, FindConflicts(a, []models.ScheduleItem{b}), 1)
	assert.Len(t, FindConflicts(b, []models.ScheduleItem{a}), 1)
}

func TestFindConflictsIgnoresTouchingWindows(t *testing.T) {
	candidate := scheduleItem("act-2", "Debate Club", at(11, 0), time.Hour)
	existing := []models.ScheduleItem{scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour)}

	assert.Empty(t, FindConflicts(candidate, existing))
}

func TestSweepAllGroupsByStudent(t *testing.T) {
	mock := &sweepMock{items: []models.StudentScheduleItem{
		{Student: "alice", ScheduleItem: scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour)},
		{Student: "alice", ScheduleItem: scheduleItem("act-2", "Debate Club", at(10, 30), time.Hour)},
		{Student: "bob", ScheduleItem: scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour)},
		{Student: "bob", ScheduleItem: scheduleItem("act-3", "Evening Yoga", at(18, 0), time.Hour)},
	}}
	svc := NewConflictService(mock, nil)

	conflicts, err := svc.SweepAll(context.Background())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "alice", conflicts[0].Student)
	assert.Contains(t, conflicts[0].Description(), "alice: ")
}

func TestSweepAllNoConflictsYieldsEmpty(t *testing.T) {
	mock := &sweepMock{items: []models.StudentScheduleItem{
		{Student: "alice", ScheduleItem: scheduleItem("act-1", "Morning Run", at(10, 0), time.Hour)},
		{Student: "alice", ScheduleItem: scheduleItem("act-2", "Debate Club", at(11, 0), time.Hour)},
	}}
	svc := NewConflictService(mock, nil)

	conflicts, err := svc.SweepAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestSweepAllReportsEveryPair(t *testing.T) {
	// Three mutually overlapping commitments produce three pairs.
	mock := &sweepMock{items: []models.StudentScheduleItem{
		{Student: "alice", ScheduleItem: scheduleItem("act-1", "A", at(10, 0), 2*time.Hour)},
		{Student: "alice", ScheduleItem: scheduleItem("act-2", "B", at(10, 30), 2*time.Hour)},
		{Student: "alice", ScheduleItem: scheduleItem("act-3", "C", at(11, 0), 2*time.Hour)},
	}}
	svc := NewConflictService(mock, nil)

	conflicts, err := svc.SweepAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, conflicts, 3)
}
