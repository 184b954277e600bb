package worker

import (
	"context"

	"github.com/civic-gov/platform/internal/notification"
	"github.com/civic-gov/platform/internal/shared/types"
)

// ContactDirectory resolves worker ids to notification recipients with the
// contact details the providers need.
type ContactDirectory struct {
	store Store
}

var _ notification.Directory = (*ContactDirectory)(nil)

// NewContactDirectory creates a directory over the worker store
func NewContactDirectory(store Store) *ContactDirectory {
	return &ContactDirectory{store: store}
}

// Recipient looks up a worker's contact details
func (d *ContactDirectory) Recipient(ctx context.Context, id types.ID) (notification.Recipient, error) {
	w, err := d.store.Get(ctx, id)
	if err != nil {
		return notification.Recipient{}, err
	}
	return notification.Recipient{
		ID:    w.ID,
		Type:  "worker",
		Name:  w.Name,
		Phone: w.Phone,
		Email: w.Email,
	}, nil
}
