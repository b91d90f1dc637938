package message

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceDateLayout renders the send date handed to the extractor so that
// relative phrases like "next Tuesday" resolve against it.
const ReferenceDateLayout = "Mon, 02 Jan 2006"

var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// ParseDate parses a Date header value. Mail clients emit a handful of
// RFC 5322 variants, some with a trailing "(MST)" comment, so each layout is
// tried in turn before stripping the comment and trying the looser ones.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	noTZParen := value
	if openParen := strings.LastIndex(noTZParen, " ("); openParen != -1 {
		if closeParen := strings.LastIndex(noTZParen, ")"); closeParen > openParen {
			noTZParen = noTZParen[:openParen] + noTZParen[closeParen+1:]
		}
	}
	noTZParen = strings.TrimSpace(noTZParen)
	for _, layout := range []string{"Mon, 2 Jan 2006 15:04:05 -0700", time.RFC1123, time.RFC822} {
		if t, err := time.Parse(layout, noTZParen); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", value)
}

// ReferenceDate formats the Date header for the extractor. An unparseable
// header is passed through as-is.
func ReferenceDate(dateHeader string) string {
	t, err := ParseDate(dateHeader)
	if err != nil {
		return dateHeader
	}
	return t.Format(ReferenceDateLayout)
}
