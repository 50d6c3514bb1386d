package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/activity"
	"taskdesk/internal/domain"
)

// Writer records the activity every mutation must leave behind.
type Writer struct {
	Log   *activity.Log
	Now   func() time.Time
	NewID func() string
}

type EventPayload map[string]any

// Entry describes one activity to record. Flags default to false.
type Entry struct {
	Type        domain.ActivityType
	EntityType  string
	EntityID    string
	Title       string
	Description string
	Important   bool
	Private     bool
	Payload     EventPayload
}

func (w Writer) Append(ctx context.Context, actor domain.Actor, e Entry) (domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, err
	}
	if w.Log == nil {
		return domain.Activity{}, fmt.Errorf("activity log not configured")
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	if w.NewID == nil {
		w.NewID = uuid.NewString
	}
	if actor.ID == "" {
		actor = domain.SystemActor
	}
	a := domain.Activity{
		ID:          w.NewID(),
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		UserID:      actor.ID,
		UserName:    actor.Name,
		CreatedAt:   w.Now(),
		IsImportant: e.Important,
		IsPrivate:   e.Private,
	}
	if len(e.Payload) > 0 {
		a.Metadata = map[string]any(e.Payload)
	}
	if err := w.Log.Append(a); err != nil {
		return domain.Activity{}, fmt.Errorf("append activity %s: %w", e.Type, err)
	}
	return a, nil
}
