// Package api provides the host-facing service shared by the gRPC and HTTP
// surfaces. Thin orchestration layer over one engine instance.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/experiences/internal/core/db"
	"github.com/solatis/experiences/internal/engine"
	"github.com/solatis/experiences/internal/types"
	"github.com/solatis/experiences/internal/xpfile"
)

// Service owns the engine and the optional captured event log.
type Service struct {
	engine *engine.Engine
	events *db.EventLog
	logger *slog.Logger
}

// EvaluateRequest is the evaluation context plus the preview flag.
// A preview runs the full pipeline with no events and no counter changes.
type EvaluateRequest struct {
	types.Context
	Preview bool `json:"preview,omitempty"`
}

// LoadResult summarizes an experiences file registration.
type LoadResult struct {
	Registered int      `json:"registered"`
	Disabled   []string `json:"disabled,omitempty"`
}

// NewService creates a service over e. events may be nil when the event log
// is not configured.
func NewService(e *engine.Engine, events *db.EventLog, logger *slog.Logger) (*Service, error) {
	if e == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: e, events: events, logger: logger}, nil
}

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Evaluate selects at most one experience for the request context.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (types.Decision, error) {
	if err := ctx.Err(); err != nil {
		return types.Decision{}, err
	}
	if req.Preview {
		return s.engine.Preview(req.Context), nil
	}
	return s.engine.Evaluate(req.Context), nil
}

// EvaluateAll returns one independent decision per registered experience.
func (s *Service) EvaluateAll(ctx context.Context, req EvaluateRequest) ([]types.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Preview {
		return s.engine.PreviewAll(req.Context), nil
	}
	return s.engine.EvaluateAll(req.Context), nil
}

// ResetFrequency clears the impression counter of a registered experience.
func (s *Service) ResetFrequency(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.engine.Get(id); !ok {
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	s.engine.ResetFrequency(id)
	s.logger.Info("frequency reset", "experience_id", id)
	return nil
}

// LoadExperiences registers every experience of an experiences file.
// Entries with a configuration error are registered disabled and listed in
// the result; only a file that fails to load returns an error.
func (s *Service) LoadExperiences(path string) (LoadResult, error) {
	exps, err := xpfile.Load(path)
	if err != nil {
		return LoadResult{}, err
	}

	var res LoadResult
	for _, exp := range exps {
		if err := s.engine.Register(exp.ID, exp); err != nil {
			if errors.Is(err, types.ErrEmptyID) {
				return res, err
			}
			res.Disabled = append(res.Disabled, exp.ID)
		}
		res.Registered++
	}

	s.logger.Info("experiences loaded",
		"path", path,
		"registered", res.Registered,
		"disabled", len(res.Disabled))
	return res, nil
}

// SetConsent grants or revokes consent for engines built with the consent gate.
func (s *Service) SetConsent(granted bool) {
	if granted {
		s.engine.GrantConsent()
	} else {
		s.engine.RevokeConsent()
	}
	s.logger.Info("consent updated",
		"granted", granted,
		"required", s.engine.ConsentRequired())
}
