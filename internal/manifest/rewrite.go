// Package manifest rewrites HLS master manifests to declare injected
// subtitle tracks and builds the per-language sub-manifests they reference.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/subinject/subinject/pkg/models"
)

// SubtitleGroupID is the rendition group id all injected tracks share
const SubtitleGroupID = "subs"

// ErrNoBasePath is returned when a manifest URL has no path separator, so no
// base URL can be derived for resolving relative references.
var ErrNoBasePath = errors.New("manifest: url has no path separator")

// lineSeparator joins rewritten manifest lines. The caption converter joins
// with "\n" instead; the two must not be mixed up.
const lineSeparator = "\r"

// BaseURL returns everything up to and including the last '/' of rawURL
func BaseURL(rawURL string) (string, error) {
	i := strings.LastIndex(rawURL, "/")
	if i < 0 {
		return "", ErrNoBasePath
	}
	return rawURL[:i+1], nil
}

// SplitLines splits manifest text into lines, accepting LF, CR and CRLF
// line endings.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Merge joins rewritten manifest lines into the final document
func Merge(lines []string) string {
	return strings.Join(lines, lineSeparator)
}

// Rewrite classifies each original manifest line and produces the rewritten
// sequence. First match wins:
//
//  1. #EXT-X-STREAM-INF variants gain the subtitle group declaration;
//  2. relative child-manifest references become absolute;
//  3. existing #EXT-X-MEDIA renditions are marked auto-select/default and
//     their URI made absolute;
//  4. any other non-empty line passes through; blank lines are dropped.
func Rewrite(lines []string, baseURL string) []string {
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			out = append(out, line+`,SUBTITLES="`+SubtitleGroupID+`"`)
		case !strings.HasPrefix(line, "#") && strings.HasSuffix(line, ".m3u8"):
			out = append(out, baseURL+line)
		case strings.HasPrefix(line, "#EXT-X-MEDIA") && strings.Contains(line, `URI="`):
			out = append(out, strings.ReplaceAll(line, `URI="`, `AUTOSELECT=YES,DEFAULT=YES,URI="`+baseURL))
		case line != "":
			out = append(out, line)
		}
	}

	return out
}

// SubtitleMedia renders the #EXT-X-MEDIA declaration for one injected
// subtitle track. AUTOSELECT and DEFAULT both follow the track's IsDefault
// flag.
func SubtitleMedia(sub models.Subtitle) string {
	flag := "NO"
	if sub.IsDefault {
		flag = "YES"
	}

	return fmt.Sprintf(
		`#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="%s",LANGUAGE="%s",NAME="%s",AUTOSELECT=%s,DEFAULT=%s,URI="%s"`,
		SubtitleGroupID,
		sub.LanguageCode,
		sub.LanguageName(),
		flag,
		flag,
		models.SubManifestFile(sub.LanguageCode),
	)
}
