package meeting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSummary  = "Meeting"
	DefaultTimeZone = "America/New_York"
	DefaultDuration = 60 * time.Minute

	// DateTimeLayout is the zone-less wall clock format sent alongside an
	// explicit time zone name.
	DateTimeLayout = "2006-01-02T15:04:05"
)

var (
	// ErrNotSchedulable is returned by Build when the date or start time is missing.
	ErrNotSchedulable = errors.New("meeting details have no date and start time")
	// ErrEventExists is returned by calendar backends when an event with the
	// same id was already created, typically by a run that stopped before
	// marking its message read.
	ErrEventExists = errors.New("calendar event already exists")
)

// eventNamespace seeds deterministic event ids.
var eventNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7e-9a51-3c2f9d7e4b10")

// EventTime is a wall clock time paired with the zone it is expressed in.
type EventTime struct {
	DateTime time.Time // wall clock, carried in UTC but not meaning UTC
	TimeZone string
}

func (t EventTime) String() string {
	return t.DateTime.Format(DateTimeLayout)
}

// Event is a fully specified calendar event.
type Event struct {
	ID          string
	Summary     string
	Description *string
	Location    *string
	Start       EventTime
	End         EventTime
	Attendees   []string
}

// Builder fills in defaults when turning Details into an Event.
type Builder struct {
	TimeZone string
	Duration time.Duration
}

// NewBuilder returns a Builder with the standard defaults. Zero arguments
// fall back to DefaultTimeZone and DefaultDuration.
func NewBuilder(timeZone string, duration time.Duration) Builder {
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Builder{TimeZone: timeZone, Duration: duration}
}

// Build computes the event for d. The start is parsed as a local wall clock
// time, independent of the process time zone; the end is start plus the
// extracted duration or the default.
func (b Builder) Build(d *Details) (*Event, error) {
	if !d.Schedulable() {
		return nil, ErrNotSchedulable
	}
	b = NewBuilder(b.TimeZone, b.Duration)

	start, err := ParseLocal(*d.Date, *d.StartTime)
	if err != nil {
		return nil, err
	}
	duration := b.Duration
	if d.Duration != nil {
		duration = time.Duration(*d.Duration) * time.Minute
	}
	tz := b.TimeZone
	if present(d.Timezone) {
		tz = strings.TrimSpace(*d.Timezone)
	}
	summary := DefaultSummary
	if d.Summary != nil {
		summary = *d.Summary
	}

	return &Event{
		Summary:     summary,
		Description: d.Agenda,
		Location:    d.Location,
		Start:       EventTime{DateTime: start, TimeZone: tz},
		End:         EventTime{DateTime: start.Add(duration), TimeZone: tz},
		Attendees:   append([]string(nil), d.Attendees...),
	}, nil
}

// EventID derives a stable calendar event id from a message key, so a re-run
// for the same message collides instead of duplicating the event.
// The result only uses characters valid in base32hex.
func EventID(messageID string) string {
	return strings.ReplaceAll(uuid.NewSHA1(eventNamespace, []byte(messageID)).String(), "-", "")
}

var (
	dateLayouts = []string{
		"2006-01-02",
		"01/02/2006",
		"1/2/2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"Monday, January 2, 2006",
		"Mon, Jan 2, 2006",
	}
	timeLayouts = []string{
		"15:04",
		"15:04:05",
		"3:04 PM",
		"3:04PM",
		"3 PM",
		"3PM",
	}
	dateTimeLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// ParseLocal parses date and start time into a wall clock time. The start
// time may also carry a complete ISO date-time, in which case it wins.
func ParseLocal(date, startTime string) (time.Time, error) {
	date = strings.TrimSpace(date)
	startTime = strings.ToUpper(strings.TrimSpace(startTime))

	if t, ok := parseDateTime(startTime); ok {
		return t, nil
	}
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, date+" "+startTime, time.UTC); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("could not parse meeting time %q %q", date, startTime)
}

func parseDateTime(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		// keep the wall clock the sender wrote, drop the offset
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
