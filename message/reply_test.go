package message

import (
	"bytes"
	"strings"
	"testing"

	gomessage "github.com/emersion/go-message"
	"github.com/nalgeon/be"
)

func testEmail() *Email {
	return &Email{
		ID: "18c2f0",
		Headers: map[string]string{
			"From":       "test_sender@gmail.com",
			"To":         "test_recipient@gmail.com",
			"Subject":    "Re: test_subject",
			"Message-ID": "<test_message_id@mail.gmail.com>",
			"Date":       "Thu, 25 Dec 2025 09:00:00 -0500",
		},
		Body: "this is a test message",
	}
}

func TestReplySubject(t *testing.T) {
	be.Equal(t, ReplySubject("Lunch"), "Re: Lunch")
	be.Equal(t, ReplySubject("Re: Lunch"), "Re: Lunch")
	be.Equal(t, ReplySubject(ReplySubject("Lunch")), "Re: Lunch")
	// only one prefix is stripped, and only the exact literal
	be.Equal(t, ReplySubject("Re: Re: Lunch"), "Re: Re: Lunch")
	be.Equal(t, ReplySubject("RE: Lunch"), "Re: RE: Lunch")
	be.Equal(t, ReplySubject(""), "Re: ")
}

func TestQuoteBody(t *testing.T) {
	be.Equal(t, QuoteBody("one\n\nthree"), "> one\n> \n> three")
	be.Equal(t, QuoteBody("crlf\r\nline"), "> crlf\n> line")
	be.Equal(t, QuoteBody(""), "> ")
}

func TestQuoteBody_PreservesLineCount(t *testing.T) {
	bodies := []string{"", "a", "a\nb", "a\n", "\n\n\n", "x\ny\nz\n\nw"}
	for _, body := range bodies {
		quoted := QuoteBody(body)
		be.Equal(t, strings.Count(quoted, "\n"), strings.Count(body, "\n"))
		for _, line := range strings.Split(quoted, "\n") {
			be.True(t, strings.HasPrefix(line, "> "))
		}
	}
}

func TestAttribution(t *testing.T) {
	got := Attribution("Thu, 25 Dec 2025 09:00:00 -0500", "test_sender@gmail.com")
	be.Equal(t, got, "On Thu, 25 Dec, 2025 at 09:00 AM test_sender@gmail.com wrote:")

	got = Attribution("Thu, 25 Dec 2025 21:30:00 -0500", "a@b.c")
	be.Equal(t, got, "On Thu, 25 Dec, 2025 at 09:30 PM a@b.c wrote:")

	got = Attribution("yesterday", "a@b.c")
	be.Equal(t, got, "On yesterday a@b.c wrote:")
}

func TestComposeReply(t *testing.T) {
	r := ComposeReply(testEmail(), "this is a reply")

	be.Equal(t, r.To, "test_sender@gmail.com")
	be.Equal(t, r.From, "test_recipient@gmail.com")
	be.Equal(t, r.Subject, "Re: test_subject")
	be.Equal(t, r.InReplyTo, "<test_message_id@mail.gmail.com>")
	be.Equal(t, r.References, "<test_message_id@mail.gmail.com>")

	want := "this is a reply\n\n" +
		"On Thu, 25 Dec, 2025 at 09:00 AM test_sender@gmail.com wrote:\n" +
		"> this is a test message"
	be.Equal(t, r.Body, want)
}

func TestReplyBytes(t *testing.T) {
	r := ComposeReply(testEmail(), "Which times work for you?")
	raw, err := r.Bytes()
	be.Err(t, err, nil)

	entity, err := gomessage.Read(bytes.NewReader(raw))
	be.Err(t, err, nil)
	be.Equal(t, entity.Header.Get("In-Reply-To"), "<test_message_id@mail.gmail.com>")
	be.Equal(t, entity.Header.Get("References"), "<test_message_id@mail.gmail.com>")
	be.Equal(t, entity.Header.Get("Subject"), "Re: test_subject")
	be.True(t, strings.Contains(entity.Header.Get("To"), "test_sender@gmail.com"))
	be.True(t, entity.Header.Get("Message-Id") != "")

	body := ExtractBody(encodeBytes(raw))
	be.True(t, strings.HasPrefix(body, "Which times work for you?"))
	be.True(t, strings.Contains(body, "> this is a test message"))
}

func TestReplyBytes_InvalidUTF8(t *testing.T) {
	r := ComposeReply(testEmail(), "bad \xff bytes")
	_, err := r.Bytes()
	be.Err(t, err, ErrEncoding)
}

func TestAddresses(t *testing.T) {
	be.Equal(t, Addresses("Alice <alice@example.com>, bob@example.com"), []string{"alice@example.com", "bob@example.com"})
	be.Equal(t, len(Addresses("")), 0)
	be.Equal(t, Addresses("not an address"), []string{"not an address"})
}
