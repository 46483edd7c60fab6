package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func window(startHour, startMin, endHour, endMin int) TimeWindow {
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	return TimeWindow{
		Start: day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

func TestTimeWindowOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeWindow
		want bool
	}{
		{"partial overlap", window(10, 0, 11, 0), window(10, 30, 11, 30), true},
		{"identical", window(10, 0, 11, 0), window(10, 0, 11, 0), true},
		{"contained", window(10, 0, 12, 0), window(10, 30, 11, 0), true},
		{"touching end to start", window(10, 0, 11, 0), window(11, 0, 12, 0), false},
		{"touching start to end", window(11, 0, 12, 0), window(10, 0, 11, 0), false},
		{"disjoint", window(8, 0, 9, 0), window(10, 0, 11, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestConflictDescription(t *testing.T) {
	conflict := Conflict{
		FirstTitle: "Debate Club",
		First:      window(10, 30, 11, 30),
		OtherTitle: "Morning Run",
		Other:      window(10, 0, 11, 0),
	}
	desc := conflict.Description()
	assert.Contains(t, desc, `"Debate Club"`)
	assert.Contains(t, desc, `"Morning Run"`)
	assert.Contains(t, desc, "overlaps")

	conflict.Student = "alice"
	assert.Contains(t, conflict.Description(), "alice: ")
}
