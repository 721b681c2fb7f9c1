package moderation

import "github.com/abadojack/whatlanggo"

// minLangConfidence keeps noisy guesses on short messages out of the store.
const minLangConfidence = 0.5

// DetectLang returns the ISO 639-3 code of the most likely language of the
// content, or "" when detection is unreliable. The tag is informational
// only; it never affects ordering or identity.
func DetectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() || info.Confidence < minLangConfidence {
		return ""
	}
	return info.Lang.Iso6393()
}
