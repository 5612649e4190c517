package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/solatis/experiences/internal/registry"
	"github.com/solatis/experiences/internal/types"
)

// ExperienceView is a registered experience as reported to hosts.
type ExperienceView struct {
	types.Experience
	Disabled    bool                   `json:"disabled"`
	Error       string                 `json:"error,omitempty"`
	Impressions *types.FrequencyRecord `json:"impressions,omitempty"`
}

// ExperienceList is the registry snapshot plus its content hash.
type ExperienceList struct {
	Experiences []ExperienceView `json:"experiences"`
	ETag        string           `json:"etag"`
}

// Experiences lists every registered experience in registration order.
// ETag changes whenever any definition, slot or disabled state changes;
// impression counters are not part of it.
func (s *Service) Experiences(ctx context.Context) (ExperienceList, error) {
	if err := ctx.Err(); err != nil {
		return ExperienceList{}, err
	}

	list := ExperienceList{Experiences: []ExperienceView{}}
	var entries []*registry.Entry
	for entry := range s.engine.Experiences() {
		entries = append(entries, entry)
		list.Experiences = append(list.Experiences, s.view(entry))
	}
	list.ETag = computeETag(entries)
	return list, nil
}

// Experience returns one registered experience.
func (s *Service) Experience(ctx context.Context, id string) (ExperienceView, error) {
	if err := ctx.Err(); err != nil {
		return ExperienceView{}, err
	}
	entry, ok := s.engine.Get(id)
	if !ok {
		return ExperienceView{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return s.view(entry), nil
}

func (s *Service) view(entry *registry.Entry) ExperienceView {
	v := ExperienceView{Experience: entry.Experience, Disabled: entry.Disabled()}
	if entry.Err != nil {
		v.Error = entry.Err.Error()
	}
	if rec, ok := s.engine.Frequency(entry.Experience.ID); ok {
		v.Impressions = &rec
	}
	return v
}

// computeETag hashes definitions in registration order.
func computeETag(entries []*registry.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		raw, err := json.Marshal(e.Experience)
		if err != nil {
			// Content holds a value encoding/json cannot represent; fall back
			// to the id so the tag still tracks membership.
			raw = []byte(e.Experience.ID)
		}
		fmt.Fprintf(h, "%d:%t:", e.Seq, e.Disabled())
		h.Write(raw)
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
