package message

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

const replyPrefix = "Re: "

// ErrEncoding is returned when a reply cannot be serialized for sending.
var ErrEncoding = errors.New("reply is not valid UTF-8")

// Reply is a composed answer to an Email, threaded to it.
type Reply struct {
	To         string
	From       string
	Subject    string
	InReplyTo  string
	References string
	Body       string
}

// ComposeReply answers orig with content. Sender and recipient are swapped,
// the subject gets exactly one "Re: " prefix and the original body is quoted
// below an attribution line.
func ComposeReply(orig *Email, content string) *Reply {
	return &Reply{
		To:         orig.From(),
		From:       orig.To(),
		Subject:    ReplySubject(orig.Subject()),
		InReplyTo:  orig.MessageID(),
		References: orig.MessageID(),
		Body: strings.Join([]string{
			content,
			"\n" + Attribution(orig.Date(), orig.From()),
			QuoteBody(orig.Body),
		}, "\n"),
	}
}

// ReplySubject strips at most one leading "Re: " and prepends one, so
// replying to a reply never stacks prefixes.
func ReplySubject(subject string) string {
	return replyPrefix + strings.TrimPrefix(subject, replyPrefix)
}

// Attribution renders the "On <date> at <time> <sender> wrote:" line.
func Attribution(dateHeader, sender string) string {
	t, err := ParseDate(dateHeader)
	if err != nil {
		return fmt.Sprintf("On %s %s wrote:", dateHeader, sender)
	}
	return fmt.Sprintf("On %s at %s %s wrote:", t.Format("Mon, 02 Jan, 2006"), t.Format("03:04 PM"), sender)
}

// QuoteBody prefixes every line of body with "> ". The number of quoted
// lines equals the number of lines in body.
func QuoteBody(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// Bytes serializes the reply as an RFC 5322 message.
func (r *Reply) Bytes() ([]byte, error) {
	for _, s := range []string{r.To, r.From, r.Subject, r.Body} {
		if !utf8.ValidString(s) {
			return nil, ErrEncoding
		}
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(r.Subject)
	setAddressHeader(&h, "From", r.From)
	setAddressHeader(&h, "To", r.To)
	if r.InReplyTo != "" {
		h.Set("In-Reply-To", r.InReplyTo)
	}
	if r.References != "" {
		h.Set("References", r.References)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(r.Body)); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Recipients returns the bare envelope addresses of the reply's To header.
func (r *Reply) Recipients() []string {
	return Addresses(r.To)
}

// Addresses extracts bare email addresses from a header value, falling back
// to comma splitting when the list does not parse.
func Addresses(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	list, err := mail.ParseAddressList(value)
	if err != nil {
		var out []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

func setAddressHeader(h *mail.Header, key, value string) {
	list, err := mail.ParseAddressList(value)
	if err != nil || len(list) == 0 {
		h.Set(key, value)
		return
	}
	h.SetAddressList(key, list)
}
