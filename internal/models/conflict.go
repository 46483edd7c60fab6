package models

import "fmt"

// Conflict describes one pair of overlapping commitments. Both titles and
// both windows are carried so the caller can render the clash directly.
type Conflict struct {
	Student    string     `json:"student,omitempty"`
	FirstTitle string     `json:"first_title"`
	First      TimeWindow `json:"-"`
	OtherTitle string     `json:"other_title"`
	Other      TimeWindow `json:"-"`
}

const conflictTimeLayout = "01-02 15:04"

// Description renders the conflict as a human-readable line.
func (c Conflict) Description() string {
	line := fmt.Sprintf("activity %q (%s-%s) overlaps %q (%s-%s)",
		c.FirstTitle,
		c.First.Start.Format(conflictTimeLayout), c.First.End.Format(conflictTimeLayout),
		c.OtherTitle,
		c.Other.Start.Format(conflictTimeLayout), c.Other.End.Format(conflictTimeLayout),
	)
	if c.Student != "" {
		return c.Student + ": " + line
	}
	return line
}
