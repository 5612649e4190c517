package engine

import (
	"fmt"

	"github.com/solatis/experiences/internal/frequency"
	"github.com/solatis/experiences/internal/registry"
	"github.com/solatis/experiences/internal/rules"
	"github.com/solatis/experiences/internal/trace"
	"github.com/solatis/experiences/internal/types"
)

// Trace step names.
const (
	StepConsent   = "consent"
	StepRegistry  = "registry"
	StepTargeting = "targeting"
	StepFrequency = "frequency"
	StepPriority  = "priority"
	StepDecision  = "decision"
)

// Reason texts without the "<id>: " prefix.
const (
	ReasonNoMatch          = "targeting rule did not match"
	ReasonNoExperiences    = "no experiences registered"
	ReasonNoneQualified    = "no experience qualified"
	ReasonConsentRequired  = "consent required but not granted"
	reasonCapFormat        = "frequency cap reached: %d/%d this %s"
	reasonDisabledFormat   = "disabled: %v"
	reasonSelectedFormat   = "selected with priority %d"
	reasonQualifiedMessage = "selected"
)

// Evaluate picks at most one experience for ctx. When a winner exists it
// publishes a shown event and then records the impression.
func (e *Engine) Evaluate(ctx types.Context) types.Decision {
	d, winner := e.evaluate(ctx)
	if winner != nil {
		e.publishShown(winner, d.Context)
	}
	return d
}

// Preview runs the Evaluate pipeline with no event and no counter change.
func (e *Engine) Preview(ctx types.Context) types.Decision {
	d, _ := e.evaluate(ctx)
	return d
}

// EvaluateAll returns one independent Decision per registered experience,
// in registration order. Every decision with show=true publishes its own
// shown event and records its own impression.
func (e *Engine) EvaluateAll(ctx types.Context) []types.Decision {
	return e.evaluateAll(ctx, true)
}

// PreviewAll runs the EvaluateAll pipeline with no events and no counter
// changes.
func (e *Engine) PreviewAll(ctx types.Context) []types.Decision {
	return e.evaluateAll(ctx, false)
}

// evaluate builds the single-winner Decision. The returned entry is the
// winner, nil when show=false.
func (e *Engine) evaluate(ctx types.Context) (types.Decision, *registry.Entry) {
	now := e.clock.Now()
	if ctx.Timestamp == 0 {
		ctx.Timestamp = types.UnixMillis(now)
	}

	tr := trace.New(e.clock)
	var reasons []string

	entries := e.registry.Entries()
	d := types.Decision{
		Context: ctx,
		Metadata: types.DecisionMetadata{
			ExperiencesEvaluated: len(entries),
			EvaluatedAt:          types.UnixMillis(now),
		},
	}

	finish := func(winner *registry.Entry) (types.Decision, *registry.Entry) {
		e.traceDecision(tr, winner)
		if winner != nil {
			d.Show = true
			d.ExperienceID = winner.Experience.ID
		}
		d.Reasons = reasons
		d.Trace, d.Metadata.TotalDuration = tr.Finish()
		e.logDecision(d)
		return d, winner
	}

	if !e.traceConsent(tr) {
		reasons = append(reasons, ReasonConsentRequired)
		skip(tr, StepRegistry, StepTargeting, StepFrequency, StepPriority)
		return finish(nil)
	}

	// registry
	tr.Begin(StepRegistry, map[string]any{"registered": len(entries)})
	enabled := make([]*registry.Entry, 0, len(entries))
	enabledIDs, disabledIDs := []string{}, []string{}
	for _, entry := range entries {
		if entry.Disabled() {
			disabledIDs = append(disabledIDs, entry.Experience.ID)
			reasons = append(reasons, prefixed(entry.Experience.ID, fmt.Sprintf(reasonDisabledFormat, entry.Err)))
			continue
		}
		enabled = append(enabled, entry)
		enabledIDs = append(enabledIDs, entry.Experience.ID)
	}
	tr.End(map[string]any{"enabled": enabledIDs, "disabled": disabledIDs}, len(enabled) > 0)
	if len(enabled) == 0 {
		if len(entries) == 0 {
			reasons = append(reasons, ReasonNoExperiences)
		} else {
			reasons = append(reasons, ReasonNoneQualified)
		}
		skip(tr, StepTargeting, StepFrequency, StepPriority)
		return finish(nil)
	}

	// targeting
	tr.Begin(StepTargeting, ctx)
	matched := make([]*registry.Entry, 0, len(enabled))
	matchedIDs, rejectedIDs := []string{}, []string{}
	for _, entry := range enabled {
		if !e.match(entry, ctx) {
			rejectedIDs = append(rejectedIDs, entry.Experience.ID)
			reasons = append(reasons, prefixed(entry.Experience.ID, ReasonNoMatch))
			continue
		}
		matched = append(matched, entry)
		matchedIDs = append(matchedIDs, entry.Experience.ID)
	}
	tr.End(map[string]any{"matched": matchedIDs, "rejected": rejectedIDs}, len(matched) > 0)
	if len(matched) == 0 {
		reasons = append(reasons, ReasonNoneQualified)
		skip(tr, StepFrequency, StepPriority)
		return finish(nil)
	}

	// frequency
	tr.Begin(StepFrequency, matchedIDs)
	candidates := make([]Candidate, 0, len(matched))
	byID := make(map[string]*registry.Entry, len(matched))
	allowedIDs, cappedIDs, failedOpen := []string{}, []string{}, []string{}
	for _, entry := range matched {
		exp := entry.Experience
		check := e.tracker.CheckAndReserve(exp.ID, exp.Frequency, now)
		if check.Err != nil {
			failedOpen = append(failedOpen, exp.ID)
		}
		if !check.Allowed {
			cappedIDs = append(cappedIDs, exp.ID)
			reasons = append(reasons, prefixed(exp.ID, capReason(check)))
			continue
		}
		allowedIDs = append(allowedIDs, exp.ID)
		candidates = append(candidates, Candidate{ID: exp.ID, Priority: exp.Priority, Seq: entry.Seq})
		byID[exp.ID] = entry
	}
	freqOut := map[string]any{"allowed": allowedIDs, "capped": cappedIDs}
	if len(failedOpen) > 0 {
		freqOut["failedOpen"] = failedOpen
	}
	tr.End(freqOut, len(candidates) > 0)
	if len(candidates) == 0 {
		reasons = append(reasons, ReasonNoneQualified)
		skip(tr, StepPriority)
		return finish(nil)
	}

	// priority
	tr.Begin(StepPriority, allowedIDs)
	res := Resolve(candidates)
	ranking := make([]string, 0, len(res.Ranked))
	for _, c := range res.Ranked {
		ranking = append(ranking, c.ID)
	}
	for _, c := range res.Losers() {
		reasons = append(reasons, lostReason(c.ID, res.Winner.ID))
	}
	tr.End(map[string]any{"winner": res.Winner.ID, "ranking": ranking}, true)

	winner := byID[res.Winner.ID]
	reasons = append(reasons, prefixed(winner.Experience.ID,
		fmt.Sprintf(reasonSelectedFormat, winner.Experience.Priority)))
	return finish(winner)
}

// evaluateAll builds one Decision per registered experience.
func (e *Engine) evaluateAll(ctx types.Context, publish bool) []types.Decision {
	now := e.clock.Now()
	if ctx.Timestamp == 0 {
		ctx.Timestamp = types.UnixMillis(now)
	}

	entries := e.registry.Entries()
	decisions := make([]types.Decision, 0, len(entries))
	for _, entry := range entries {
		d, show := e.evaluateOne(entry, ctx)
		decisions = append(decisions, d)
		if show && publish {
			e.publishShown(entry, ctx)
		}
	}
	return decisions
}

// evaluateOne runs consent, targeting and frequency for a single entry.
func (e *Engine) evaluateOne(entry *registry.Entry, ctx types.Context) (types.Decision, bool) {
	now := e.clock.Now()
	exp := entry.Experience
	tr := trace.New(e.clock)

	d := types.Decision{
		ExperienceID: exp.ID,
		Context:      ctx,
		Metadata: types.DecisionMetadata{
			ExperiencesEvaluated: 1,
			EvaluatedAt:          types.UnixMillis(now),
		},
	}

	show := false
	switch {
	case !e.traceConsent(tr):
		d.Reasons = []string{ReasonConsentRequired}
		skip(tr, StepTargeting, StepFrequency)

	case entry.Disabled():
		tr.Begin(StepTargeting, map[string]any{"experienceId": exp.ID})
		tr.Fail(entry.Err)
		tr.Skip(StepFrequency, nil)
		d.Reasons = []string{prefixed(exp.ID, fmt.Sprintf(reasonDisabledFormat, entry.Err))}

	default:
		tr.Begin(StepTargeting, map[string]any{"experienceId": exp.ID})
		matched := e.match(entry, ctx)
		tr.End(map[string]any{"matched": matched}, matched)
		if !matched {
			tr.Skip(StepFrequency, nil)
			d.Reasons = []string{prefixed(exp.ID, ReasonNoMatch)}
			break
		}

		tr.Begin(StepFrequency, map[string]any{"experienceId": exp.ID})
		check := e.tracker.CheckAndReserve(exp.ID, exp.Frequency, now)
		tr.End(checkOutput(check), check.Allowed)
		if !check.Allowed {
			d.Reasons = []string{prefixed(exp.ID, capReason(check))}
			break
		}

		show = true
		d.Reasons = []string{prefixed(exp.ID, reasonQualifiedMessage)}
	}

	tr.Begin(StepDecision, nil)
	tr.End(map[string]any{"show": show, "experienceId": exp.ID}, show)

	d.Show = show
	d.Trace, d.Metadata.TotalDuration = tr.Finish()
	e.logDecision(d)
	return d, show
}

// traceConsent records the consent stage and reports whether it passed.
func (e *Engine) traceConsent(tr *trace.Tracer) bool {
	granted := e.consentGranted.Load()
	passed := !e.consentRequired || granted

	tr.Begin(StepConsent, map[string]any{"required": e.consentRequired})
	tr.End(map[string]any{"granted": granted}, passed)
	return passed
}

func (e *Engine) traceDecision(tr *trace.Tracer, winner *registry.Entry) {
	out := map[string]any{"show": winner != nil}
	if winner != nil {
		out["experienceId"] = winner.Experience.ID
	}
	tr.Begin(StepDecision, nil)
	tr.End(out, winner != nil)
}

// match evaluates compiled targeting; a CEL runtime error counts as no match.
func (e *Engine) match(entry *registry.Entry, ctx types.Context) bool {
	result := rules.Match(entry.Targeting, ctx)
	if result.Err != nil {
		e.logger.Warn("targeting evaluation failed",
			"experience_id", entry.Experience.ID,
			"condition", result.FailedOn.String(),
			"err", result.Err)
	}
	return result.Matched
}

func (e *Engine) logDecision(d types.Decision) {
	if !e.debug {
		return
	}
	e.logger.Debug("decision",
		"show", d.Show,
		"experience_id", d.ExperienceID,
		"url", d.Context.URL,
		"reasons", d.Reasons,
		"duration_ms", d.Metadata.TotalDuration)
}

func skip(tr *trace.Tracer, steps ...string) {
	for _, s := range steps {
		tr.Skip(s, nil)
	}
}

func prefixed(id, reason string) string {
	return id + ": " + reason
}

func capReason(c frequency.Check) string {
	return fmt.Sprintf(reasonCapFormat, c.Current, c.Max, c.Window)
}

func checkOutput(c frequency.Check) map[string]any {
	out := map[string]any{"allowed": c.Allowed}
	if c.Max > 0 {
		out["current"] = c.Current
		out["max"] = c.Max
		out["window"] = string(c.Window)
		out["windowStart"] = types.UnixMillis(c.WindowStart)
	}
	if c.Err != nil {
		out["failedOpen"] = true
	}
	return out
}
