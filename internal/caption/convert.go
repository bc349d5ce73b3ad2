// Package caption converts SRT-flavoured subtitle text into WebVTT suitable
// for HLS playback.
package caption

import (
	"strconv"
	"strings"
)

const (
	// Header is the WebVTT format header token
	Header = "WEBVTT"

	// TimestampMap is the directive inserted right after the header so players
	// can align cue times with the MPEG-TS timeline.
	TimestampMap = "X-TIMESTAMP-MAP=MPEGTS:100000,LOCAL:00:00:00.000"

	// cueTimeSeparator marks a cue timing line
	cueTimeSeparator = "-->"

	// cueIndexCutset is trimmed off a line before deciding whether it is a
	// bare cue index. Covers stray spaces, a UTF-8 BOM and CR line endings.
	cueIndexCutset = " \uFEFF\r"
)

// Convert rewrites caption source text line by line:
//
//   - the WEBVTT header is kept and the timestamp-map directive inserted
//     directly after it, unless one is already there;
//   - a bare cue-index line directly after a blank line is dropped;
//   - cue timing lines have commas replaced by periods, since WebVTT uses a
//     period as the sub-second delimiter;
//   - everything else passes through untouched.
//
// Running Convert on its own output yields the same text again.
func Convert(src string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines)+1)

	for i, line := range lines {
		switch {
		case line == Header:
			out = append(out, line)
			if i+1 >= len(lines) || strings.TrimRight(lines[i+1], "\r") != TimestampMap {
				out = append(out, TimestampMap)
			}
		case isCueIndex(line) && i > 0 && isBlank(lines[i-1]):
			// duplicate or orphan cue index, dropped
		case strings.Contains(line, cueTimeSeparator):
			out = append(out, strings.ReplaceAll(line, ",", "."))
		default:
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

func isCueIndex(line string) bool {
	trimmed := strings.Trim(line, cueIndexCutset)
	if trimmed == "" {
		return false
	}
	_, err := strconv.Atoi(trimmed)
	return err == nil
}

func isBlank(line string) bool {
	return line == "" || line == "\r"
}
