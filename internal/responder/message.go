package responder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/joshsymonds/replybot/internal/gmail"
)

var (
	// ErrMissingHeader means the message lacks Subject or From.
	ErrMissingHeader = errors.New("missing header")
	// ErrNoAddress means the From header has no <bracketed> address.
	ErrNoAddress = errors.New("no bracketed address in From header")
)

const replyPrefix = "Re:"

var bracketAddrRe = regexp.MustCompile(`<(.*)>`)

// Reply is the canned answer to one message.
type Reply struct {
	MessageID gmail.MessageID
	ThreadID  gmail.ThreadID
	To        string
	Subject   string
	Reference string // In-Reply-To / References value
	Body      string
}

// ReplySubject prefixes "Re: " unless subject already starts with "Re:".
func ReplySubject(subject string) string {
	if strings.HasPrefix(subject, replyPrefix) {
		return subject
	}
	return replyPrefix + " " + subject
}

// ExtractAddress returns the text inside the angle brackets of a From header.
func ExtractAddress(from string) (string, error) {
	m := bracketAddrRe.FindStringSubmatch(from)
	if len(m) != 2 || strings.TrimSpace(m[1]) == "" {
		return "", fmt.Errorf("%w: %q", ErrNoAddress, from)
	}
	return strings.TrimSpace(m[1]), nil
}

// EncodeRaw is base64url without padding, the encoding users.messages.send expects.
func EncodeRaw(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// BuildReply derives the reply for meta.
func BuildReply(meta gmail.MessageMeta, body string) (Reply, error) {
	subject, ok := meta.Header(gmail.HeaderSubject)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrMissingHeader, gmail.HeaderSubject)
	}
	from, ok := meta.Header(gmail.HeaderFrom)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrMissingHeader, gmail.HeaderFrom)
	}
	to, err := ExtractAddress(from)
	if err != nil {
		return Reply{}, err
	}

	ref := string(meta.ID)
	if mid, ok := meta.Header(gmail.HeaderMessageID); ok && strings.TrimSpace(mid) != "" {
		ref = strings.TrimSpace(mid)
	}
	thread := meta.ThreadID
	if thread == "" {
		thread = gmail.ThreadID(meta.ID)
	}
	return Reply{
		MessageID: meta.ID,
		ThreadID:  thread,
		To:        to,
		Subject:   ReplySubject(subject),
		Reference: ref,
		Body:      body,
	}, nil
}

// Raw renders the RFC 822 text of r.
func (r Reply) Raw() string {
	return strings.Join([]string{
		"From: me",
		"To: " + r.To,
		"Subject: " + r.Subject,
		"In-Reply-To: " + r.Reference,
		"References: " + r.Reference,
		"",
		r.Body,
	}, "\n")
}

// Outgoing encodes r for sending in its thread.
func (r Reply) Outgoing() gmail.OutgoingMessage {
	return gmail.OutgoingMessage{Raw: EncodeRaw(r.Raw()), ThreadID: r.ThreadID}
}
