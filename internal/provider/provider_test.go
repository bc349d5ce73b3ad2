package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subinject/subinject/internal/cache"
	"github.com/subinject/subinject/internal/config"
	"github.com/subinject/subinject/internal/fetch"
	"github.com/subinject/subinject/internal/logging"
	"github.com/subinject/subinject/internal/store"
	"github.com/subinject/subinject/pkg/models"
)

const masterManifest = "#EXTM3U\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=1280x720\n" +
	"720p.m3u8\n"

const srtSource = "1\n" +
	"00:00:01,000 --> 00:00:04,000\n" +
	"Hello\n" +
	"\n" +
	"2\n" +
	"00:00:05,000 --> 01:02:03,500\n" +
	"World\n"

// upstream simulates the origin serving the manifest and caption sources
type upstream struct {
	*httptest.Server
	requests  atomic.Int64
	failLangs map[string]bool
	bodies    map[string]string

	// gate blocks the first request whose path contains gatePath until the
	// channel is closed, letting tests hold a build mid-flight.
	gatePath string
	gate     chan struct{}
	gated    atomic.Bool
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{
		failLangs: map[string]bool{},
		bodies: map[string]string{
			"/vod/master.m3u8": masterManifest,
			"/subs/en.srt":     srtSource,
			"/subs/fr.srt":     srtSource,
		},
	}

	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.requests.Add(1)
		if u.gatePath != "" && strings.Contains(r.URL.Path, u.gatePath) && u.gated.CompareAndSwap(false, true) {
			<-u.gate
		}
		for lang := range u.failLangs {
			if strings.Contains(r.URL.Path, lang) {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
		}
		body, ok := u.bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(u.Close)

	return u
}

func newTestProvider(t *testing.T, sourceCache *cache.Cache) (*Provider, *store.FSStore) {
	t.Helper()

	artifacts, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	fetcher := fetch.New(config.FetchConfig{Timeout: 5 * time.Second})
	p := New(config.ServerConfig{Host: "localhost", Port: 8888}, fetcher, sourceCache, artifacts, logging.NewNop())

	return p, artifacts
}

func TestBuildEmptyTrackList(t *testing.T) {
	u := newUpstream(t)
	p, _ := newTestProvider(t, nil)

	result := p.Build(context.Background(), nil, u.URL+"/vod/master.m3u8", "")

	assert.Equal(t, u.URL+"/vod/master.m3u8", result.URL)
	assert.Equal(t, models.BuildOutcomeDegraded, result.Outcome)
	assert.Zero(t, u.requests.Load(), "no network activity expected")
}

func TestBuildTwoTracks(t *testing.T) {
	u := newUpstream(t)
	p, artifacts := newTestProvider(t, nil)
	ctx := context.Background()

	subtitles := []models.Subtitle{
		{LanguageCode: "en", URL: u.URL + "/subs/en.srt", IsDefault: true},
		{LanguageCode: "fr", URL: u.URL + "/subs/fr.srt"},
	}

	result := p.Build(ctx, subtitles, u.URL+"/vod/master.m3u8", "session-1")

	assert.Equal(t, models.BuildOutcomeFull, result.Outcome)
	assert.Empty(t, result.SkippedLanguages)
	assert.Empty(t, result.MissingSubManifests)
	assert.Equal(t, "session-1", result.Session)

	prefix := "http://localhost:8888/session-1/merged.m3u8?"
	assert.True(t, strings.HasPrefix(result.URL, prefix), "URL = %q", result.URL)
	assert.NotEmpty(t, strings.TrimPrefix(result.URL, prefix), "cache-busting token missing")

	merged, err := artifacts.Read(ctx, "session-1", models.MergedManifest)
	require.NoError(t, err)

	lines := strings.Split(string(merged), "\r")
	require.Len(t, lines, 5)
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, `#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=1280x720,SUBTITLES="subs"`, lines[1])
	assert.Equal(t, u.URL+"/vod/720p.m3u8", lines[2])
	assert.Equal(t, `#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",LANGUAGE="en",NAME="English",AUTOSELECT=YES,DEFAULT=YES,URI="sub-en.m3u8"`, lines[3])
	assert.Equal(t, `#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",LANGUAGE="fr",NAME="French",AUTOSELECT=NO,DEFAULT=NO,URI="sub-fr.m3u8"`, lines[4])

	// All per-language artifacts exist
	for _, lang := range []string{"en", "fr"} {
		for _, filename := range []string{
			models.RawCaptionFile(lang),
			models.CaptionFile(lang),
			models.SubManifestFile(lang),
		} {
			exists, err := artifacts.Exists(ctx, "session-1", filename)
			require.NoError(t, err)
			assert.True(t, exists, "missing artifact %s", filename)
		}
	}

	// Converted captions carry periods in cue times and no orphan index
	vtt, err := artifacts.Read(ctx, "session-1", models.CaptionFile("en"))
	require.NoError(t, err)
	assert.Contains(t, string(vtt), "00:00:05.000 --> 01:02:03.500")
	assert.NotContains(t, string(vtt), "\n2\n")

	// Sub-manifest carries the duration of the last cue
	sub, err := artifacts.Read(ctx, "session-1", models.SubManifestFile("en"))
	require.NoError(t, err)
	assert.Contains(t, string(sub), "#EXT-X-TARGETDURATION:3724")
	assert.Contains(t, string(sub), "#EXTINF:3723.5")
	assert.Contains(t, string(sub), "en.vtt")
}

func TestBuildSkipsFailedTrack(t *testing.T) {
	u := newUpstream(t)
	u.failLangs["fr"] = true
	p, artifacts := newTestProvider(t, nil)
	ctx := context.Background()

	subtitles := []models.Subtitle{
		{LanguageCode: "en", URL: u.URL + "/subs/en.srt", IsDefault: true},
		{LanguageCode: "fr", URL: u.URL + "/subs/fr.srt"},
	}

	result := p.Build(ctx, subtitles, u.URL+"/vod/master.m3u8", "session-2")

	assert.Equal(t, models.BuildOutcomePartial, result.Outcome)
	assert.Equal(t, []string{"fr"}, result.SkippedLanguages)
	assert.True(t, strings.HasPrefix(result.URL, "http://localhost:8888/session-2/merged.m3u8?"))

	merged, err := artifacts.Read(ctx, "session-2", models.MergedManifest)
	require.NoError(t, err)
	assert.Contains(t, string(merged), `LANGUAGE="en"`)
	assert.NotContains(t, string(merged), `LANGUAGE="fr"`)

	for _, filename := range []string{"fr.txt", "fr.vtt", "sub-fr.m3u8"} {
		exists, err := artifacts.Exists(ctx, "session-2", filename)
		require.NoError(t, err)
		assert.False(t, exists, "unexpected artifact %s", filename)
	}
}

func TestBuildDegradesWhenManifestFetchFails(t *testing.T) {
	u := newUpstream(t)
	p, _ := newTestProvider(t, nil)

	originalURL := u.URL + "/vod/does-not-exist.m3u8"
	subtitles := []models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/en.srt"}}

	result := p.Build(context.Background(), subtitles, originalURL, "")

	assert.Equal(t, originalURL, result.URL)
	assert.Equal(t, models.BuildOutcomeDegraded, result.Outcome)
}

func TestBuildDegradesWithoutBasePath(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	subtitles := []models.Subtitle{{LanguageCode: "en", URL: "http://x/en.srt"}}
	result := p.Build(context.Background(), subtitles, "no-separator", "")

	assert.Equal(t, "no-separator", result.URL)
	assert.Equal(t, models.BuildOutcomeDegraded, result.Outcome)
}

func TestBuildEmitsDeclarationWithoutSubManifest(t *testing.T) {
	u := newUpstream(t)
	u.bodies["/subs/en.srt"] = "no cue timestamps in here"
	p, artifacts := newTestProvider(t, nil)
	ctx := context.Background()

	subtitles := []models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/en.srt", IsDefault: true}}
	result := p.Build(ctx, subtitles, u.URL+"/vod/master.m3u8", "session-3")

	assert.Equal(t, models.BuildOutcomeFull, result.Outcome)
	assert.Equal(t, []string{"en"}, result.MissingSubManifests)

	merged, err := artifacts.Read(ctx, "session-3", models.MergedManifest)
	require.NoError(t, err)
	assert.Contains(t, string(merged), `LANGUAGE="en"`)

	exists, err := artifacts.Exists(ctx, "session-3", models.SubManifestFile("en"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildRejectsInFlightSession(t *testing.T) {
	u := newUpstream(t)
	p, _ := newTestProvider(t, nil)

	u.bodies["/subs/slow.srt"] = srtSource
	u.gatePath = "slow"
	u.gate = make(chan struct{})

	first := make(chan models.BuildResult, 1)
	go func() {
		first <- p.Build(context.Background(),
			[]models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/slow.srt"}},
			u.URL+"/vod/master.m3u8", "dup")
	}()

	// Wait until the first build holds the session reservation
	require.Eventually(t, u.gated.Load, 2*time.Second, 10*time.Millisecond)

	second := p.Build(context.Background(),
		[]models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/en.srt"}},
		u.URL+"/vod/master.m3u8", "dup")
	assert.Equal(t, models.BuildOutcomeDegraded, second.Outcome)
	assert.Equal(t, u.URL+"/vod/master.m3u8", second.URL)

	close(u.gate)
	assert.Equal(t, models.BuildOutcomeFull, (<-first).Outcome)
}

func TestBuildUsesFetchCache(t *testing.T) {
	u := newUpstream(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	sourceCache, err := cache.New(config.CacheConfig{
		Host: mr.Host(),
		Port: mr.Server().Addr().Port,
		TTL:  time.Minute,
	})
	require.NoError(t, err)
	defer sourceCache.Close()

	p, _ := newTestProvider(t, sourceCache)
	ctx := context.Background()

	subtitles := []models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/en.srt", IsDefault: true}}

	r1 := p.Build(ctx, subtitles, u.URL+"/vod/master.m3u8", "cache-a")
	require.Equal(t, models.BuildOutcomeFull, r1.Outcome)
	afterFirst := u.requests.Load()

	r2 := p.Build(ctx, subtitles, u.URL+"/vod/master.m3u8", "cache-b")
	require.Equal(t, models.BuildOutcomeFull, r2.Outcome)

	assert.Equal(t, afterFirst, u.requests.Load(), "second build should be served from cache")
}

func TestBuildGeneratesSession(t *testing.T) {
	u := newUpstream(t)
	p, _ := newTestProvider(t, nil)

	result := p.Build(context.Background(),
		[]models.Subtitle{{LanguageCode: "en", URL: u.URL + "/subs/en.srt"}},
		u.URL+"/vod/master.m3u8", "")

	require.Equal(t, models.BuildOutcomeFull, result.Outcome)
	assert.NotEmpty(t, result.Session)
	assert.Contains(t, result.URL, fmt.Sprintf("/%s/merged.m3u8?", result.Session))
}
