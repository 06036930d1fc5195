package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// clause captures up to the end of the current sentence.
const clause = `([^.!?\n]+)`

const maxClauseRunes = 200

var goalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)моя\s+цель\s*[—:-]?\s*` + clause),
	regexp.MustCompile(`(?i)хотел[аи]?\s+бы\s+` + clause),
	regexp.MustCompile(`(?i)хотелось\s+бы\s+` + clause),
	regexp.MustCompile(`(?i)мечтаю\s+` + clause),
	regexp.MustCompile(`(?i)(?:я\s+)?хочу\s+` + clause),
}

// Goal extracts a goal statement such as "хочу чувствовать спокойствие".
func Goal(text string) (string, bool) {
	return firstClause(text, goalPatterns)
}

var strategyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)обычно\s+я\s+` + clause),
	regexp.MustCompile(`(?i)я\s+пытаюсь\s+` + clause),
	regexp.MustCompile(`(?i)я\s+стараюсь\s+` + clause),
	regexp.MustCompile(`(?i)я\s+привык\p{L}*\s+` + clause),
}

// Strategy extracts how the client currently tries to reach the goal.
func Strategy(text string) (string, bool) {
	return firstClause(text, strategyPatterns)
}

var needPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)потребност\p{L}*\s+в\s+` + clause),
	regexp.MustCompile(`(?i)нуждаюсь\s+в\s+` + clause),
	regexp.MustCompile(`(?i)мне\s+(?:очень\s+)?нужн[оаы]?\s+` + clause),
	regexp.MustCompile(`(?i)мне\s+(?:очень\s+)?важн[оа]?\s+` + clause),
	regexp.MustCompile(`(?i)(?:хочу|хочется)\s+(?:чувствовать|ощущать)\s+` + clause),
}

// Need extracts a deep need such as "мне важно быть принятым".
func Need(text string) (string, bool) {
	return firstClause(text, needPatterns)
}

var bodyLocations = []string{
	"в груди", "в животе", "в горле", "в плечах", "в спине", "в голове",
	"в руках", "в ногах", "в шее", "в сердце", "в солнечном сплетении",
	"в теле", "в области",
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// BodySensation returns the sentence in which the client locates a
// sensation in the body.
func BodySensation(text string) (string, bool) {
	for _, sentence := range sentenceSplit.Split(text, -1) {
		if containsAny(strings.ToLower(sentence), bodyLocations) {
			return clip(sentence)
		}
	}
	return "", false
}

var energyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)энерги\p{L}*[^\d]{0,20}(\d{1,2})`),
	regexp.MustCompile(`(?i)сил\p{L}*\s+на\s+(\d{1,2})`),
}

// EnergyLevel extracts a 1..10 energy rating.
func EnergyLevel(text string) (int, bool) {
	return firstInRange(text, energyPatterns, 1, 10)
}

var metaphorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:похож\p{L}*\s+на|как\s+будто|словно|напоминает|представляю|вижу\s+образ\p{L}*|это\s+образ\p{L}*)\s+` + clause),
}

// Metaphor extracts an image the client describes.
func Metaphor(text string) (string, bool) {
	return firstClause(text, metaphorPatterns)
}

var actionPattern = regexp.MustCompile(`(?i)я\s+((?:буду|начну|сделаю|попробую|собираюсь|планирую)\s+[^.!?\n]+)`)

// Actions extracts every authored future action, in order of appearance.
func Actions(text string) []string {
	var out []string
	for _, m := range actionPattern.FindAllStringSubmatch(text, -1) {
		if s, ok := clip(m[1]); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstClause(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if s, ok := clip(m[1]); ok {
			return s, true
		}
	}
	return "", false
}

func clip(s string) (string, bool) {
	s = strings.TrimSpace(strings.Trim(s, " ,;:—-"))
	if utf8.RuneCountInString(s) < 3 {
		return "", false
	}
	if utf8.RuneCountInString(s) > maxClauseRunes {
		s = string([]rune(s)[:maxClauseRunes])
	}
	return s, true
}
