package models

// Artifact file names within a session directory.
const (
	OriginalManifest = "original.m3u8"
	MergedManifest   = "merged.m3u8"
)

// RawCaptionFile returns the artifact name for the unconverted caption source
func RawCaptionFile(languageCode string) string {
	return languageCode + ".txt"
}

// CaptionFile returns the artifact name for the converted WebVTT captions
func CaptionFile(languageCode string) string {
	return languageCode + ".vtt"
}

// SubManifestFile returns the artifact name for the per-language sub-manifest
func SubManifestFile(languageCode string) string {
	return "sub-" + languageCode + ".m3u8"
}
