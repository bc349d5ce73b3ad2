// Package provider implements the injection pipeline: fetch the original
// manifest and caption sources, rewrite and convert them, persist every
// artifact under a session, and hand back a locally servable manifest URL.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/subinject/subinject/internal/cache"
	"github.com/subinject/subinject/internal/caption"
	"github.com/subinject/subinject/internal/config"
	"github.com/subinject/subinject/internal/fetch"
	"github.com/subinject/subinject/internal/logging"
	"github.com/subinject/subinject/internal/manifest"
	"github.com/subinject/subinject/internal/metrics"
	"github.com/subinject/subinject/internal/store"
	"github.com/subinject/subinject/internal/tracing"
	"github.com/subinject/subinject/pkg/models"
)

// Provider coordinates one injection build end to end. It never returns an
// error to its caller: anything unrecoverable degrades the result back to
// the original manifest URL.
type Provider struct {
	host      string
	port      int
	fetcher   *fetch.Fetcher
	cache     *cache.Cache // nil when the fetch cache is disabled
	artifacts store.Store
	sessions  *store.Sessions
	logger    *logging.Logger
}

// New creates a provider. The host and port must match the ones the local
// file server listens on, since they are baked into every returned URL.
func New(cfg config.ServerConfig, fetcher *fetch.Fetcher, sourceCache *cache.Cache, artifacts store.Store, logger *logging.Logger) *Provider {
	return &Provider{
		host:      cfg.Host,
		port:      cfg.Port,
		fetcher:   fetcher,
		cache:     sourceCache,
		artifacts: artifacts,
		sessions:  store.NewSessions(),
		logger:    logger.WithComponent("provider"),
	}
}

// trackResult is the per-track outcome collected before the ordered merge
type trackResult struct {
	mediaLine          string
	injected           bool
	subManifestMissing bool
}

// Build injects the given subtitle tracks into the manifest at originalURL
// and returns a URL for the merged manifest served by the local file
// server. An empty session id gets a generated one. Individual track
// failures are skipped; a failure around the original manifest degrades the
// whole build to the original URL.
func (p *Provider) Build(ctx context.Context, subtitles []models.Subtitle, originalURL, session string) models.BuildResult {
	if len(subtitles) == 0 {
		return p.degraded(originalURL, session)
	}

	span, ctx := tracing.StartSpan(ctx, "provider.build")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "manifest.url", originalURL)

	if session == "" {
		session = uuid.New().String()
	}
	tracing.SetTag(span, "session", session)
	log := p.logger.WithSession(session)

	if !p.sessions.Reserve(session) {
		log.Warn("Session id already in flight, refusing to share its namespace")
		return p.degraded(originalURL, session)
	}
	defer p.sessions.Release(session)

	baseURL, err := manifest.BaseURL(originalURL)
	if err != nil {
		tracing.LogError(span, err)
		log.WithError(err).WithURL(originalURL).Warn("Cannot derive base URL")
		return p.degraded(originalURL, session)
	}

	original, err := p.download(ctx, originalURL)
	if err != nil {
		tracing.LogError(span, err)
		log.WithError(err).WithURL(originalURL).Warn("Failed to fetch original manifest")
		return p.degraded(originalURL, session)
	}

	if !p.persist(ctx, session, models.OriginalManifest, original) {
		return p.degraded(originalURL, session)
	}

	lines := manifest.Rewrite(manifest.SplitLines(string(original)), baseURL)

	// Per-track work has no cross-track dependencies and runs concurrently;
	// the merge below walks the original track order so output stays
	// deterministic.
	results := make([]trackResult, len(subtitles))
	var wg sync.WaitGroup
	for i, sub := range subtitles {
		wg.Add(1)
		go func(i int, sub models.Subtitle) {
			defer wg.Done()
			results[i] = p.processTrack(ctx, session, sub)
		}(i, sub)
	}
	wg.Wait()

	result := models.BuildResult{
		Session: session,
		Outcome: models.BuildOutcomeFull,
	}

	for i, sub := range subtitles {
		r := results[i]
		if !r.injected {
			result.SkippedLanguages = append(result.SkippedLanguages, sub.LanguageCode)
			continue
		}
		lines = append(lines, r.mediaLine)
		if r.subManifestMissing {
			result.MissingSubManifests = append(result.MissingSubManifests, sub.LanguageCode)
		}
	}

	merged := manifest.Merge(lines)
	if !p.persist(ctx, session, models.MergedManifest, []byte(merged)) {
		log.Error("Failed to persist merged manifest")
		return p.degraded(originalURL, session)
	}

	if len(result.SkippedLanguages) > 0 {
		result.Outcome = models.BuildOutcomePartial
	}
	result.URL = p.mergedURL(session)

	metrics.BuildsTotal.WithLabelValues(string(result.Outcome)).Inc()
	metrics.TracksInjectedTotal.Add(float64(len(subtitles) - len(result.SkippedLanguages)))
	metrics.TracksSkippedTotal.Add(float64(len(result.SkippedLanguages)))

	log.Infof("Build finished: outcome=%s tracks=%d skipped=%d",
		result.Outcome, len(subtitles), len(result.SkippedLanguages))

	return result
}

// processTrack fetches, converts and persists one subtitle track. A fetch
// or raw-persist failure skips the track entirely; later failures keep the
// track declared but without a sub-manifest.
func (p *Provider) processTrack(ctx context.Context, session string, sub models.Subtitle) trackResult {
	span, ctx := tracing.StartSpan(ctx, "provider.track")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "language", sub.LanguageCode)

	log := p.logger.WithSession(session).WithLanguage(sub.LanguageCode)

	raw, err := p.download(ctx, sub.URL)
	if err != nil {
		tracing.LogError(span, err)
		log.WithError(err).WithURL(sub.URL).Warn("Failed to fetch subtitle source, skipping track")
		return trackResult{}
	}

	if !p.persist(ctx, session, models.RawCaptionFile(sub.LanguageCode), raw) {
		return trackResult{}
	}

	r := trackResult{
		mediaLine: manifest.SubtitleMedia(sub),
		injected:  true,
	}

	converted := caption.Convert(string(raw))
	if !p.persist(ctx, session, models.CaptionFile(sub.LanguageCode), []byte(converted)) {
		r.subManifestMissing = true
		return r
	}

	subManifest, ok := manifest.BuildSubManifest(sub.LanguageCode, converted)
	if !ok {
		// The track is still declared in the merged manifest, leaving a
		// dangling sub-manifest reference. Surfaced via MissingSubManifests.
		log.Warn("No usable cue timestamp found, sub-manifest omitted")
		r.subManifestMissing = true
		return r
	}

	if !p.persist(ctx, session, models.SubManifestFile(sub.LanguageCode), []byte(subManifest)) {
		r.subManifestMissing = true
	}

	return r
}

// download fetches a remote source, consulting the fetch cache when enabled
func (p *Provider) download(ctx context.Context, url string) ([]byte, error) {
	if p.cache != nil {
		data, err := p.cache.GetSource(ctx, url)
		if err != nil {
			p.logger.WithError(err).WithURL(url).Warn("Fetch cache lookup failed")
		} else if data != nil {
			metrics.FetchesTotal.WithLabelValues(metrics.FetchResultCacheHit).Inc()
			return data, nil
		}
	}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(metrics.FetchResultError).Inc()
		return nil, err
	}
	metrics.FetchesTotal.WithLabelValues(metrics.FetchResultOK).Inc()

	if p.cache != nil {
		if err := p.cache.SetSource(ctx, url, data); err != nil {
			p.logger.WithError(err).WithURL(url).Debug("Fetch cache store failed")
		}
	}

	return data, nil
}

// persist writes one artifact and reports success. Failures are logged and
// absorbed: the caller skips whatever depended on that artifact.
func (p *Provider) persist(ctx context.Context, session, filename string, data []byte) bool {
	err := p.artifacts.Write(ctx, session, filename, data)
	p.logger.LogArtifactWrite(session, filename, len(data), err)
	if err != nil {
		metrics.ArtifactWriteFailuresTotal.Inc()
		return false
	}
	metrics.ArtifactWritesTotal.Inc()
	return true
}

// mergedURL builds the playable URL for a session. The query token only
// defeats client-side caching.
func (p *Provider) mergedURL(session string) string {
	return fmt.Sprintf("http://%s:%d/%s/%s?%s",
		p.host, p.port, session, models.MergedManifest, uuid.New().String())
}

// degraded hands the caller back the original URL unchanged
func (p *Provider) degraded(originalURL, session string) models.BuildResult {
	metrics.BuildsTotal.WithLabelValues(string(models.BuildOutcomeDegraded)).Inc()
	return models.BuildResult{
		URL:     originalURL,
		Outcome: models.BuildOutcomeDegraded,
		Session: session,
	}
}
