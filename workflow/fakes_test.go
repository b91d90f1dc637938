package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/bassamadnan/mailsched/meeting"
	"github.com/bassamadnan/mailsched/message"
)

var errBoom = errors.New("boom")

type testMessage struct {
	headers []message.Header
	body    string
}

func rawPlain(body string) string {
	return base64.URLEncoding.EncodeToString([]byte("Content-Type: text/plain; charset=utf-8\r\n\r\n" + body))
}

func lunchMessage() testMessage {
	return testMessage{
		headers: []message.Header{
			{Name: "From", Value: "Bob <bob@example.com>"},
			{Name: "To", Value: "Alan <alan@example.com>"},
			{Name: "Subject", Value: "Lunch"},
			{Name: "Date", Value: "Thu, 09 Jan 2025 10:00:00 -0500"},
			{Name: "Message-ID", Value: "<lunch@example.com>"},
		},
		body: "Can we meet tomorrow at 2pm?",
	}
}

// withMessageID returns msg with its Message-ID header replaced; an empty id
// drops the header.
func withMessageID(msg testMessage, id string) testMessage {
	var headers []message.Header
	for _, h := range msg.headers {
		if h.Name != "Message-ID" {
			headers = append(headers, h)
		}
	}
	if id != "" {
		headers = append(headers, message.Header{Name: "Message-ID", Value: id})
	}
	msg.headers = headers
	return msg
}

// fakeMailbox implements Mailbox in memory.
type fakeMailbox struct {
	mu        sync.Mutex
	ids       []string
	messages  map[string]testMessage
	listErr   error
	headerErr map[string]error
	sendErr   error
	markErr   error

	marked []string
	sent   [][]byte
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{messages: map[string]testMessage{}, headerErr: map[string]error{}}
}

func (m *fakeMailbox) add(id string, msg testMessage) {
	m.ids = append(m.ids, id)
	m.messages[id] = msg
}

func (m *fakeMailbox) ListUnread(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	read := map[string]bool{}
	for _, id := range m.marked {
		read[id] = true
	}
	var ids []string
	for _, id := range m.ids {
		if !read[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *fakeMailbox) FetchHeaders(_ context.Context, id string) ([]message.Header, error) {
	if err := m.headerErr[id]; err != nil {
		return nil, err
	}
	return m.messages[id].headers, nil
}

func (m *fakeMailbox) FetchRawBody(_ context.Context, id string) (string, error) {
	return rawPlain(m.messages[id].body), nil
}

func (m *fakeMailbox) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, id)
	return nil
}

func (m *fakeMailbox) SendMessage(_ context.Context, raw []byte) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, raw)
	return "sent-1", nil
}

// fakeCalendar implements Calendar.
type fakeCalendar struct {
	events []*meeting.Event
	err    error
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev *meeting.Event) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.events = append(c.events, ev)
	return "https://calendar.example/" + ev.ID, nil
}

// fakeAssistant implements Assistant with canned answers.
type fakeAssistant struct {
	isMeeting   bool
	classifyErr error
	details     *meeting.Details
	extractErr  error
	reply       string
	composeErr  error

	classifyTexts []string
	extractCalls  int
	composeCalls  int
	lastActor     string
	lastRefDate   string
}

func (a *fakeAssistant) ClassifyMeetingIntent(_ context.Context, text string) (bool, error) {
	a.classifyTexts = append(a.classifyTexts, text)
	return a.isMeeting, a.classifyErr
}

func (a *fakeAssistant) ExtractMeetingDetails(_ context.Context, _, actorName, referenceDate string) (*meeting.Details, error) {
	a.extractCalls++
	a.lastActor = actorName
	a.lastRefDate = referenceDate
	if a.extractErr != nil {
		return nil, a.extractErr
	}
	d := *a.details
	d.Attendees = append([]string(nil), a.details.Attendees...)
	return &d, nil
}

func (a *fakeAssistant) ComposeAvailabilityRequest(_ context.Context, _, actorName string) (string, error) {
	a.composeCalls++
	a.lastActor = actorName
	return a.reply, a.composeErr
}

// fakeFilter matches one sender substring.
type fakeFilter struct{ sender string }

func (f fakeFilter) Match(from, _ string) (string, bool) {
	if f.sender != "" && from == f.sender {
		return "sender:" + f.sender, true
	}
	return "", false
}
