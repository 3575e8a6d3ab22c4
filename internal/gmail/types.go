package gmail

import "net/textproto"

// MessageID is the Gmail API message id.
type MessageID string

// ThreadID is the Gmail API thread id.
type ThreadID string

// LabelID is the Gmail API label id. System labels use their upper-case names.
type LabelID string

// LabelInbox is the system label removed when a message is archived.
const LabelInbox LabelID = "INBOX"

// Header names requested from the metadata endpoint.
const (
	HeaderSubject   = "Subject"
	HeaderFrom      = "From"
	HeaderMessageID = "Message-ID"
)

// MessageMeta is the header-only view of a message.
type MessageMeta struct {
	ID       MessageID
	ThreadID ThreadID
	Headers  map[string]string // keyed by textproto.CanonicalMIMEHeaderKey
}

// Header returns the named header and whether it was present.
func (m MessageMeta) Header(name string) (string, bool) {
	v, ok := m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Label is a mailbox category.
type Label struct {
	ID   LabelID
	Name string
}

// ModifyOps lists label changes applied to a single message.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// OutgoingMessage is an encoded RFC 822 message ready for users.messages.send.
type OutgoingMessage struct {
	Raw      string // base64url, unpadded
	ThreadID ThreadID
}

// Query is a Gmail search string, already formed.
type Query struct {
	Raw string
}

// UnrepliedQuery matches inbox mail that is unread, not a chat and not sent by the account owner.
var UnrepliedQuery = Query{Raw: "in:inbox is:unread -in:chats -from:me"}
