// Package detect extracts discrete signals from raw client text.
//
// Every function here is pure: it inspects its input and reports what it
// found. Nothing in this package mutates session state, and absence of a
// match is reported as a zero value rather than an error.
package detect

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/mpt-session/internal/domain"
)

// Scenario returns the first scenario, in catalog order, with a keyword
// occurring in text. Matching is a case-insensitive substring test.
func Scenario(text string, scenarios []domain.Scenario) *domain.Scenario {
	lower := strings.ToLower(text)
	for i := range scenarios {
		if containsAny(lower, scenarios[i].Keywords) {
			return &scenarios[i]
		}
	}
	return nil
}

// RequestType classifies text into the first matching category in
// declaration order, falling back to general.
func RequestType(text string, categories []domain.RequestCategory) domain.RequestType {
	lower := strings.ToLower(text)
	for _, c := range categories {
		if c.Type == domain.RequestGeneral {
			continue
		}
		if containsAny(lower, c.Keywords) {
			return c.Type
		}
	}
	return domain.RequestGeneral
}

var confusionPhrases = []string{
	"не знаю",
	"не понимаю",
	"не чувствую",
	"не могу ответить",
	"затрудняюсь",
	"не уверен",
	"не ощущаю",
	"не вижу",
	"непонятно",
	"сложно сказать",
	"трудно сказать",
	"не могу сформулировать",
	"don't know",
	"don't understand",
	"hard to say",
}

// Confusion reports whether the client says some form of "I don't know".
func Confusion(text string) bool {
	return containsAny(strings.ToLower(text), confusionPhrases)
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)меня зовут (\p{L}+)`),
	regexp.MustCompile(`(?i)зови меня (\p{L}+)`),
	regexp.MustCompile(`(?i)можешь звать меня (\p{L}+)`),
	regexp.MustCompile(`(?i)мо[её]? имя (\p{L}+)`),
	regexp.MustCompile(`(?i)имя[:\s]+(\p{L}+)`),
	regexp.MustCompile(`(?i)я — (\p{L}+)`),
	regexp.MustCompile(`(?i)привет,?\s+я (\p{L}+)`),
}

var nameStopWords = []string{
	"я", "мне", "меня", "мой", "моя", "моё", "это", "что", "как", "так",
	"хочу", "могу", "буду", "должен", "чувствую", "думаю", "понимаю",
	"знаю", "вижу", "слышу", "делаю", "говорю", "считаю", "помню",
	"люблю", "ненавижу", "боюсь", "хотел", "была", "был", "есть",
	"тоже", "очень", "просто", "тут", "там", "здесь", "сейчас",
	"всегда", "никогда", "иногда", "часто", "редко", "давно",
	"рад", "рада", "готов", "готова", "согласен", "согласна",
	"устал", "устала", "не",
}

// ClientName scans client messages in order and returns the first valid
// self-introduced name, capitalized. The earliest valid match wins.
func ClientName(history []domain.Message) string {
	for _, m := range history {
		if m.Role != domain.RoleClient {
			continue
		}
		for _, p := range namePatterns {
			match := p.FindStringSubmatch(m.Content)
			if match == nil {
				continue
			}
			token := match[1]
			n := utf8.RuneCountInString(token)
			if n < 2 || n > 20 {
				continue
			}
			if slices.Contains(nameStopWords, strings.ToLower(token)) {
				continue
			}
			return capitalize(token)
		}
	}
	return ""
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2})\s*(?:из|/)\s*10`),
	regexp.MustCompile(`(?i)на\s*(\d{1,2})`),
	regexp.MustCompile(`(?i)оцениваю[^\d]*(\d{1,2})`),
	regexp.MustCompile(`^(\d{1,2})$`),
}

// ImportanceRating extracts a 1..10 rating. Out-of-range numbers are
// treated as non-matches.
func ImportanceRating(text string) (int, bool) {
	return firstInRange(strings.TrimSpace(text), ratingPatterns, 1, 10)
}

var ratingQuestion = regexp.MustCompile(`(?i)(?:из|до|/)\s*10\b|по\s+шкале|оцени`)

// AsksRating reports whether a therapist message asks for a 1..10 rating.
func AsksRating(therapist string) bool {
	return ratingQuestion.MatchString(therapist)
}

// HelpingQuestion returns a "what if" question used when the client is
// stuck. It sniffs the therapist's previous question and falls back to a
// question suited to the stage.
func HelpingQuestion(prior string, stage domain.Stage) string {
	lower := strings.ToLower(prior)
	switch {
	case containsAny(lower, []string{"чувству", "ощущ"}):
		return helpFeeling
	case containsAny(lower, []string{"понима", "думаешь"}):
		return helpUnderstanding
	case containsAny(lower, []string{"вид", "образ", "метафор"}):
		return helpImage
	}
	switch stage {
	case domain.StageBodyWork:
		return helpFeeling
	case domain.StageImageCreation:
		return helpImage
	default:
		return helpGeneric
	}
}

const (
	helpFeeling       = "А если бы ты чувствовал — каким бы могло быть это ощущение? Позволь себе представить."
	helpUnderstanding = "А если бы понимал — каким бы могло быть это понимание? Что первое приходит в голову?"
	helpImage         = "А если бы видел — на что бы это могло быть похоже? Какой образ мог бы возникнуть?"
	helpGeneric       = "А если бы знал — на что бы это знание могло быть похоже? Что первое приходит на ум?"
)

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func firstInRange(text string, patterns []*regexp.Regexp, lo, hi int) (int, bool) {
	for _, p := range patterns {
		match := p.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n >= lo && n <= hi {
			return n, true
		}
	}
	return 0, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
