package api

import (
	"context"
	"fmt"

	"github.com/solatis/experiences/internal/core/db"
	"github.com/solatis/experiences/internal/types"
)

// EmitRequest is a host-reported lifecycle event.
// Type accepts bare ("action") and namespaced ("experiences:action") names.
type EmitRequest struct {
	Type         string         `json:"type"`
	ExperienceID string         `json:"experienceId"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Emit publishes a host-reported action or dismissed event.
func (s *Service) Emit(ctx context.Context, req EmitRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.ExperienceID == "" {
		return fmt.Errorf("%w: experienceId required", ErrInvalidRequest)
	}
	t, err := types.ParseEventType(req.Type)
	if err != nil {
		return err
	}
	return s.engine.Emit(t, req.ExperienceID, req.Payload)
}

// Events returns the most recent captured events, newest first.
// A non-positive limit returns the default page.
func (s *Service) Events(ctx context.Context, limit int) ([]types.Event, error) {
	if s.events == nil {
		return nil, ErrEventLogDisabled
	}
	if limit <= 0 {
		limit = db.DefaultRecentLimit
	}
	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	return events, nil
}
