package manifest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/subinject/subinject/pkg/models"
)

// timestampPattern matches a cue timing arrow and the end timestamp that
// follows it. The last match in a caption document gives the total duration.
var timestampPattern = regexp.MustCompile(`--> \d{2}:\d{2}:\d{2}(.\d{3}?.*)?`)

const subManifestTemplate = `#EXTM3U
#EXT-X-TARGETDURATION:%d
#EXT-X-VERSION:3
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:%s
%s
#EXT-X-ENDLIST`

// Duration extracts the total duration in seconds from converted caption
// text by reading the right-hand side of the last cue timing line. ok is
// false when no timestamp with exactly three numeric components is present.
func Duration(captions string) (float64, bool) {
	matches := timestampPattern.FindAllString(captions, -1)
	if len(matches) == 0 {
		return 0, false
	}

	last := matches[len(matches)-1]
	parts := strings.Split(last, "-->")
	end := parts[len(parts)-1]

	fields := strings.Split(end, ":")
	if len(fields) != 3 {
		return 0, false
	}

	var components [3]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return 0, false
		}
		components[i] = v
	}

	return components[0]*3600 + components[1]*60 + components[2], true
}

// BuildSubManifest renders the single-segment sub-manifest referencing one
// converted caption file. ok is false when the caption text carries no
// usable end timestamp; no manifest is emitted then.
func BuildSubManifest(languageCode, captions string) (string, bool) {
	duration, ok := Duration(captions)
	if !ok {
		return "", false
	}

	targetDuration := int(math.Ceil(duration))

	return fmt.Sprintf(
		subManifestTemplate,
		targetDuration,
		strconv.FormatFloat(duration, 'f', -1, 64),
		models.CaptionFile(languageCode),
	), true
}
