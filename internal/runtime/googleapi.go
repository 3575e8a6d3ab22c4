// internal/runtime/googleapi.go adapts *gmail.Service to the narrow gmail.Client.
package runtime

import (
	"context"
	"fmt"
	"net/textproto"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/replybot/internal/gmail"
)

const userID = "me"

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps an initialized Gmail service.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) ListMessages(ctx context.Context, q gc.Query) ([]gc.MessageID, error) {
	var ids []gc.MessageID
	err := g.svc.Users.Messages.List(userID).Q(q.Raw).Pages(ctx, func(res *gmail.ListMessagesResponse) error {
		for _, m := range res.Messages {
			ids = append(ids, gc.MessageID(m.Id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return ids, nil
}

func (g *googleClient) GetMetadata(ctx context.Context, id gc.MessageID, headers []string) (gc.MessageMeta, error) {
	msg, err := g.svc.Users.Messages.Get(userID, string(id)).
		Format("metadata").MetadataHeaders(headers...).Context(ctx).Do()
	if err != nil {
		return gc.MessageMeta{}, fmt.Errorf("get message %s: %w", id, err)
	}
	h := map[string]string{}
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			h[textproto.CanonicalMIMEHeaderKey(hd.Name)] = hd.Value
		}
	}
	return gc.MessageMeta{
		ID:       id,
		ThreadID: gc.ThreadID(msg.ThreadId),
		Headers:  h,
	}, nil
}

func (g *googleClient) Send(ctx context.Context, out gc.OutgoingMessage) error {
	msg := &gmail.Message{Raw: out.Raw, ThreadId: string(out.ThreadID)}
	if _, err := g.svc.Users.Messages.Send(userID, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (g *googleClient) ListLabels(ctx context.Context) ([]gc.Label, error) {
	lr, err := g.svc.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	labels := make([]gc.Label, 0, len(lr.Labels))
	for _, l := range lr.Labels {
		labels = append(labels, gc.Label{ID: gc.LabelID(l.Id), Name: l.Name})
	}
	return labels, nil
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (gc.LabelID, error) {
	created, err := g.svc.Users.Labels.Create(userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    toStrings(ops.AddLabels),
		RemoveLabelIds: toStrings(ops.RemoveLabels),
	}
	if _, err := g.svc.Users.Messages.Modify(userID, string(id), req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify message %s: %w", id, err)
	}
	return nil
}

func toStrings(ids []gc.LabelID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

var _ gc.Client = (*googleClient)(nil)
