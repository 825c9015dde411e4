package domain

import "strings"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms lists the supported platforms in their display order.
var AllPlatforms = []Platform{PlatformInstagram, PlatformYouTube, PlatformTikTok}

// ParsePlatform accepts any casing ("INSTAGRAM", "Instagram", " instagram ").
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlatformInstagram, PlatformYouTube, PlatformTikTok:
		return p, nil
	default:
		return "", &UnsupportedPlatformError{Platform: raw}
	}
}

func (p Platform) String() string {
	return string(p)
}
