package models

// BuildOutcome describes how far an injection request got
type BuildOutcome string

// Build outcomes
const (
	// BuildOutcomeFull means every requested track was injected
	BuildOutcomeFull BuildOutcome = "full"
	// BuildOutcomePartial means at least one track was skipped
	BuildOutcomePartial BuildOutcome = "partial"
	// BuildOutcomeDegraded means the caller got the original URL back unchanged
	BuildOutcomeDegraded BuildOutcome = "degraded"
)

// BuildResult is returned by every injection call. URL is always usable:
// on a degraded build it is the original manifest URL, untouched.
type BuildResult struct {
	URL     string       `json:"url"`
	Outcome BuildOutcome `json:"outcome"`
	Session string       `json:"session,omitempty"`

	// SkippedLanguages lists tracks dropped because their source could not
	// be fetched or persisted.
	SkippedLanguages []string `json:"skipped_languages,omitempty"`

	// MissingSubManifests lists tracks whose #EXT-X-MEDIA declaration was
	// emitted but whose sub-manifest could not be built (no usable cue
	// timestamp). The merged manifest carries a dangling reference for them.
	MissingSubManifests []string `json:"missing_submanifests,omitempty"`
}
