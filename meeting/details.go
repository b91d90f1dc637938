// Package meeting holds the structured scheduling data pulled out of an email
// and turns it into a calendar event.
package meeting

import (
	"strings"

	"github.com/bassamadnan/mailsched/message"
)

// Classification is the language model's verdict on a single email.
type Classification struct {
	IsMeetingRequest bool `json:"is_meeting_request"`
}

// Details are the meeting fields extracted from an email. Every field but
// Attendees may be absent.
type Details struct {
	Summary   *string  `json:"summary"`
	Agenda    *string  `json:"agenda"`
	Date      *string  `json:"date"`
	StartTime *string  `json:"start_time"`
	Duration  *int     `json:"duration"` // minutes
	Location  *string  `json:"location"`
	Timezone  *string  `json:"timezone"`
	Attendees []string `json:"attendees"`
}

// Schedulable reports whether both a date and a start time were found. This
// is the only condition separating "book it" from "ask for availability".
func (d *Details) Schedulable() bool {
	return present(d.Date) && present(d.StartTime)
}

// AddAttendees appends the addresses found in each header value, skipping
// any already on the list. Existing entries are deduplicated too, keeping
// first-seen order.
func (d *Details) AddAttendees(values ...string) {
	seen := make(map[string]bool, len(d.Attendees))
	out := make([]string, 0, len(d.Attendees)+len(values))
	add := func(addr string) {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(addr))
	}
	for _, a := range d.Attendees {
		for _, addr := range message.Addresses(a) {
			add(addr)
		}
	}
	for _, v := range values {
		for _, addr := range message.Addresses(v) {
			add(addr)
		}
	}
	d.Attendees = out
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// String returns a pointer to s, for building Details by hand.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
