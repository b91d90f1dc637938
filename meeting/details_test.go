package meeting

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestSchedulable(t *testing.T) {
	be.True(t, (&Details{Date: String("2025-01-10"), StartTime: String("14:00")}).Schedulable())
	be.True(t, !(&Details{Date: String("2025-01-10")}).Schedulable())
	be.True(t, !(&Details{StartTime: String("14:00")}).Schedulable())
	be.True(t, !(&Details{Date: String(" "), StartTime: String("14:00")}).Schedulable())
	be.True(t, !(&Details{}).Schedulable())
}

func TestAddAttendees(t *testing.T) {
	d := &Details{Attendees: []string{"carol@example.com", "Bob <bob@example.com>"}}
	d.AddAttendees("Alice <alice@example.com>", "bob@example.com, Carol <CAROL@example.com>")

	be.Equal(t, d.Attendees, []string{"carol@example.com", "bob@example.com", "alice@example.com"})
}

func TestAddAttendees_NoDuplicates(t *testing.T) {
	d := &Details{Attendees: []string{"a@example.com", "a@example.com", "A@EXAMPLE.COM"}}
	d.AddAttendees("a@example.com", "b@example.com", "b@example.com", "")

	seen := map[string]bool{}
	for _, a := range d.Attendees {
		be.True(t, !seen[a])
		seen[a] = true
	}
	be.Equal(t, d.Attendees, []string{"a@example.com", "b@example.com"})
}
