package gmail

import "context"

// Client is the narrow Gmail surface required by replybot.
type Client interface {
	ListMessages(ctx context.Context, q Query) ([]MessageID, error)
	GetMetadata(ctx context.Context, id MessageID, headers []string) (MessageMeta, error)
	Send(ctx context.Context, msg OutgoingMessage) error
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (LabelID, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
}
