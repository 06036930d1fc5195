package detect

import "regexp"

// Reframe is a victim-voiced phrase found in client text together with the
// authored wording the therapist should steer towards.
type Reframe struct {
	Phrase     string
	Suggestion string
}

type reframeRule struct {
	pattern    *regexp.Regexp
	suggestion string
}

var reframeRules = []reframeRule{
	{regexp.MustCompile(`(?i)мен[яю]\s+раздража\p{L}*`), "Я раздражаюсь, когда…"},
	{regexp.MustCompile(`(?i)мен[яю]\s+обидел\p{L}*`), "Я обиделся, когда…"},
	{regexp.MustCompile(`(?i)(?:\p{L}+\s+)?мен[яю]\s+(?:беси\p{L}*|бесят)`), "Я злюсь, когда…"},
	{regexp.MustCompile(`(?i)мен[яю]\s+(?:злит|злят)`), "Я злюсь, когда…"},
	{regexp.MustCompile(`(?i)мен[яю]\s+(?:достал\p{L}*|достают)`), "Я устаю, когда…"},
	{regexp.MustCompile(`(?i)мен[яю]\s+заставля\p{L}*`), "Я соглашаюсь, когда…"},
	{regexp.MustCompile(`(?i)мне\s+не\s+дают`), "Я не позволяю себе, когда…"},
	{regexp.MustCompile(`(?i)(?:they|he|she)\s+annoys?\s+me`), "I get annoyed when…"},
}

// VictimVoice finds the first victim-voiced phrase in text.
func VictimVoice(text string) (Reframe, bool) {
	for _, r := range reframeRules {
		if loc := r.pattern.FindString(text); loc != "" {
			return Reframe{Phrase: loc, Suggestion: r.suggestion}, true
		}
	}
	return Reframe{}, false
}
