// internal/types/experience.go
package types

/*
 * Domain types for experience definitions.
 *
 * Provides Experience, TargetingRule, URLRule and FrequencyRule used by
 * internal/rules for compilation and internal/frequency for capping. These
 * types are source-format agnostic: YAML (internal/xpfile) and JSON (HTTP,
 * gRPC structpb) both decode into them at the boundary.
 *
 * Key types:
 *   - Experience: id, type, opaque content, targeting, optional frequency, priority
 *   - TargetingRule: optional url sub-rule and optional CEL expression (AND semantics)
 *   - URLRule: contains / equals / matches, each optional (AND semantics)
 *   - FrequencyRule: max impressions per hour/day/week window
 *
 * Dependencies: None (standard library only)
 */

// ExperienceType identifies how the host renders an experience.
type ExperienceType string

const (
	TypeBanner ExperienceType = "banner"
	TypeModal  ExperienceType = "modal"
	TypeInline ExperienceType = "inline"
)

// Valid reports whether t is a known experience type.
func (t ExperienceType) Valid() bool {
	switch t {
	case TypeBanner, TypeModal, TypeInline:
		return true
	default:
		return false
	}
}

// Window is the width of a frequency counting window.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Valid reports whether w is hour, day or week.
func (w Window) Valid() bool {
	switch w {
	case WindowHour, WindowDay, WindowWeek:
		return true
	default:
		return false
	}
}

// URLRule tests Context.URL. Every non-empty field must pass.
// Matches holds pattern source; it is compiled once at registration.
type URLRule struct {
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Equals   string `json:"equals,omitempty" yaml:"equals,omitempty"`
	Matches  string `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// IsEmpty reports whether no URL condition is configured.
func (r *URLRule) IsEmpty() bool {
	return r == nil || (r.Contains == "" && r.Equals == "" && r.Matches == "")
}

// TargetingRule decides eligibility from Context.
// Empty rule matches unconditionally. Configured forms are ANDed.
type TargetingRule struct {
	URL        *URLRule `json:"url,omitempty" yaml:"url,omitempty"`
	Expression string   `json:"expression,omitempty" yaml:"expression,omitempty"` // CEL over url, referrer, timestamp
}

// IsEmpty reports whether the rule matches unconditionally.
func (r TargetingRule) IsEmpty() bool {
	return r.URL.IsEmpty() && r.Expression == ""
}

// FrequencyRule caps impressions per window.
type FrequencyRule struct {
	Max int    `json:"max" yaml:"max"`
	Per Window `json:"per" yaml:"per"`
}

// FrequencyRecord is the persisted counter for one experience.
// Only the current window is kept; a stale WindowKey reads as count 0.
type FrequencyRecord struct {
	ExperienceID string `json:"experienceId"`
	WindowKey    string `json:"windowKey"`
	Count        int    `json:"count"`
}

// Experience is a declarative definition of content plus the rules that
// govern when and how often it may be shown.
type Experience struct {
	ID        string         `json:"id" yaml:"id"`
	Type      ExperienceType `json:"type" yaml:"type"`
	Content   map[string]any `json:"content,omitempty" yaml:"content,omitempty"` // opaque to the engine
	Targeting TargetingRule  `json:"targeting" yaml:"targeting"`
	Frequency *FrequencyRule `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Priority  int            `json:"priority,omitempty" yaml:"priority,omitempty"`
}
