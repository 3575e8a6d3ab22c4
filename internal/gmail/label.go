package gmail

import (
	"context"
	"fmt"
)

// EnsureLabel returns the id of the label called name, creating it when missing.
// Calling it again once the label exists returns the same id without creating anything.
func EnsureLabel(ctx context.Context, c Client, name string) (LabelID, error) {
	labels, err := c.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range labels {
		if l.Name == name {
			return l.ID, nil
		}
	}
	id, err := c.CreateLabel(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return id, nil
}
