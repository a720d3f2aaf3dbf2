package meeting

import "strings"

// Platform is the video-conference platform a meeting URL belongs to.
type Platform string

const (
	PlatformMeet    Platform = "meet"
	PlatformZoom    Platform = "zoom"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform selects the platform variant by URL pattern.
func DetectPlatform(url string) Platform {
	switch {
	case IsMeetURL(url):
		return PlatformMeet
	case IsZoomURL(url):
		return PlatformZoom
	default:
		return PlatformUnknown
	}
}

// IsMeetURL reports whether the text looks like a Google Meet link.
func IsMeetURL(text string) bool {
	return strings.Contains(text, "meet.google.com/")
}

// IsZoomURL reports whether the text looks like a Zoom join link.
func IsZoomURL(text string) bool {
	return strings.Contains(text, "zoom.us/j/") ||
		strings.Contains(text, "zoom.us/my/") ||
		strings.Contains(text, "zoom.us/s/") ||
		strings.Contains(text, ".zoom.us/j/")
}
