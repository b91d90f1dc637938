// Package message turns raw mailbox payloads into normalized emails and
// builds threaded replies to them.
package message

import "strings"

// Header is a single name/value pair as returned by a mailbox metadata fetch.
type Header struct {
	Name  string
	Value string
}

// Email holds the essential information extracted from a mailbox message.
type Email struct {
	ID      string            // Mailbox-internal message identifier
	Headers map[string]string // Flat header projection, last duplicate wins
	Body    string            // Plain text body, "" when none was found
}

// HeaderMap projects a header list into a flat map. When a header name
// repeats, the last value wins.
func HeaderMap(headers []Header) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// Header returns the value of the named header. Lookup falls back to a
// case-insensitive match since mailboxes disagree on "Message-ID" vs "Message-Id".
func (e *Email) Header(name string) string {
	if v, ok := e.Headers[name]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (e *Email) From() string      { return e.Header("From") }
func (e *Email) To() string        { return e.Header("To") }
func (e *Email) Subject() string   { return e.Header("Subject") }
func (e *Email) Date() string      { return e.Header("Date") }
func (e *Email) MessageID() string { return e.Header("Message-ID") }

// Key identifies the message across mailboxes and runs: its Message-ID
// header, or the mailbox id when the header is missing. Mailbox ids such as
// IMAP UIDs can be reused, so they are only a fallback.
func (e *Email) Key() string {
	if id := strings.TrimSpace(e.MessageID()); id != "" {
		return id
	}
	return e.ID
}

// PlainText reconstructs the canonical view handed to the language model:
// From, To and Subject lines, a blank line, then the body. Date is left out on
// purpose so absolute dates don't bias the model.
func (e *Email) PlainText() string {
	return strings.Join([]string{
		"From: " + e.From(),
		"To: " + e.To(),
		"Subject: " + e.Subject(),
		"",
		e.Body,
	}, "\n")
}
