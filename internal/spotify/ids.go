package spotify

import "regexp"

// Matches share links (https://open.spotify.com/playlist/<id>) and URIs
// (spotify:playlist:<id>), capturing the base62 resource id.
var (
	playlistIDPattern = regexp.MustCompile(`(?:spotify:playlist:|https?://open\.spotify\.com/playlist/)([a-zA-Z0-9]+)`)
	bareIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)
)

// ExtractPlaylistID resolves a shareable playlist link or URI to its id.
// A bare base62 id passes through unchanged. Returns "" when the input
// resolves to nothing.
func ExtractPlaylistID(raw string) string {
	if m := playlistIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if bareIDPattern.MatchString(raw) {
		return raw
	}
	return ""
}
