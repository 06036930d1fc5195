// Package stage implements the session stage machine: when a session may
// leave its current stage and what the therapist is allowed to do while in
// it.
package stage

import (
	"fmt"
	"strings"

	"github.com/ashureev/mpt-session/internal/domain"
)

// DefaultMinResponses is the number of client responses every non-terminal
// stage waits for before it can be left.
const DefaultMinResponses = 2

// Rule describes one stage.
type Rule struct {
	MinResponses int
	// Gate is the content gate. A nil Gate always passes.
	Gate func(*domain.SessionState) bool
	// Missing names what the gate waits for, in the therapist's language.
	Missing   string
	Task      string
	Allowed   []string
	Forbidden []string
}

var rules = [...]Rule{
	domain.StageSpaceCreation: {
		MinResponses: DefaultMinResponses,
		Task:         "Тепло поприветствуй клиента, создай безопасное пространство и узнай, с чем он пришёл.",
		Allowed:      []string{"приветствие и знакомство", "общий вопрос о том, что беспокоит"},
		Forbidden:    []string{"вопросы о теле", "вопросы про образы и метафоры", "советы и интерпретации"},
	},
	domain.StageContextGathering: {
		MinResponses: DefaultMinResponses,
		Task:         "Исследуй ситуацию клиента: что происходит, как давно, в каких ситуациях. Попроси оценить важность запроса от 1 до 10.",
		Allowed:      []string{"вопросы о ситуации и её контексте", "оценка важности запроса"},
		Forbidden:    []string{"вопросы о теле", "вопросы про образы и метафоры", "советы и интерпретации"},
	},
	domain.StageRequestClarification: {
		MinResponses: DefaultMinResponses,
		Gate:         func(s *domain.SessionState) bool { return s.Context.CurrentGoal != nil },
		Missing:      "цель клиента: чего он хочет вместо проблемы",
		Task:         "Помоги сформулировать запрос конкретно, позитивно и от первого лица. Проверь пять критериев запроса.",
		Allowed:      []string{"вопрос «чего ты хочешь вместо этого?»", "проверка авторства и позитивной формулировки"},
		Forbidden:    []string{"вопросы о теле", "вопросы про образы и метафоры"},
	},
	domain.StageStrategyExploration: {
		MinResponses: DefaultMinResponses,
		Task:         "Исследуй, как клиент сейчас пытается достичь цели: что он делает и что это ему даёт.",
		Allowed:      []string{"вопросы о привычной стратегии", "вопрос «что это тебе даёт?»"},
		Forbidden:    []string{"вопросы о теле", "вопросы про образы и метафоры", "советы"},
	},
	domain.StageNeedDiscovery: {
		MinResponses: DefaultMinResponses,
		Gate:         func(s *domain.SessionState) bool { return s.Context.DeepNeed != nil },
		Missing:      "глубинная потребность клиента",
		Task:         "Найди глубинную потребность за стратегией. Спрашивай «а что это тебе даст?» до тех пор, пока не прозвучит потребность.",
		Allowed:      []string{"вопросы о смысле и ценности цели"},
		Forbidden:    []string{"вопросы про образы и метафоры", "метапозиция"},
	},
	domain.StageBodyWork: {
		MinResponses: DefaultMinResponses,
		Gate:         func(s *domain.SessionState) bool { return s.Context.BodySensation != nil },
		Missing:      "телесное ощущение: где в теле живёт энергия потребности",
		Task:         "Помоги клиенту найти, где в теле ощущается энергия потребности и какая она.",
		Allowed:      []string{"вопросы о телесных ощущениях", "микро-движения и дыхание"},
		Forbidden:    []string{"вопросы про образы и метафоры", "метапозиция"},
	},
	domain.StageImageCreation: {
		MinResponses: DefaultMinResponses,
		Gate:         func(s *domain.SessionState) bool { return s.Context.Metaphor != nil },
		Missing:      "образ или метафора этого ощущения",
		Task:         "Помоги клиенту найти образ для найденного ощущения: на что оно похоже?",
		Allowed:      []string{"вопросы про образ и его качества"},
		Forbidden:    []string{"метапозиция", "новые действия"},
	},
	domain.StageMetaPosition: {
		MinResponses: DefaultMinResponses,
		Task:         "Предложи клиенту посмотреть на свою ситуацию из позиции образа. Что образ хочет сказать клиенту?",
		Allowed:      []string{"взгляд из позиции образа", "вопросы о том, что видно с этой позиции"},
		Forbidden:    []string{"новые действия", "практики внедрения"},
	},
	domain.StageIntegration: {
		MinResponses: DefaultMinResponses,
		Task:         "Помоги клиенту соединиться с образом и присвоить его состояние. Что изменилось?",
		Allowed:      []string{"вопросы об изменившемся состоянии", "соединение с ресурсом"},
		Forbidden:    []string{"практики внедрения", "возврат к проблеме"},
	},
	domain.StageAuthoredAction: {
		MinResponses: DefaultMinResponses,
		Task:         "Помоги клиенту назвать конкретные новые действия от первого лица: «я буду…», «я попробую…».",
		Allowed:      []string{"вопросы о первых шагах", "уточнение конкретики действий"},
		Forbidden:    []string{"новые темы", "советы вместо вопросов"},
	},
	domain.StageClosing: {
		Task:      "Подведи краткий итог, напомни ключевой инсайт или метафору, предложи практику внедрения и спроси, готов ли клиент к первому шагу.",
		Allowed:   []string{"итог сессии", "практика внедрения"},
		Forbidden: []string{"начинать новые темы"},
	},
}

// RuleFor returns the rule of s. Invalid stages get the closing rule.
func RuleFor(s domain.Stage) Rule {
	if !s.Valid() {
		return rules[domain.LastStage]
	}
	return rules[s]
}

func turnGateMet(st *domain.SessionState) bool {
	r := RuleFor(st.Stage)
	return r.MinResponses > 0 && st.ResponseCount >= r.MinResponses
}

func contentGateMet(st *domain.SessionState) bool {
	r := RuleFor(st.Stage)
	return r.Gate == nil || r.Gate(st)
}

// ShouldTransition reports whether the session may leave its current stage.
// The terminal stage never transitions.
func ShouldTransition(st *domain.SessionState) bool {
	if st.Stage >= domain.LastStage {
		return false
	}
	return turnGateMet(st) && contentGateMet(st)
}

// Transition moves the session to the next stage unconditionally and
// reports whether it moved. At the terminal stage it is a no-op.
func Transition(st *domain.SessionState) bool {
	next, ok := st.Stage.Next()
	if !ok {
		return false
	}
	if st.Stage == domain.StageIntegration {
		st.IntegrationComplete = true
	}
	st.StageHistory = append(st.StageHistory, st.Stage)
	st.Stage = next
	st.ResponseCount = 0
	return true
}

// Advance performs at most one transition, if the gates allow it.
func Advance(st *domain.SessionState) bool {
	if !ShouldTransition(st) {
		return false
	}
	return Transition(st)
}

// Directive renders the instruction block for the current stage.
func Directive(st *domain.SessionState) string {
	r := RuleFor(st.Stage)
	var b strings.Builder
	fmt.Fprintf(&b, "## ТЕКУЩИЙ ЭТАП: %s (%d из %d)\n", st.Stage.Name(), int(st.Stage)+1, len(rules))
	fmt.Fprintf(&b, "Задача этапа: %s\n", r.Task)
	if len(r.Allowed) > 0 {
		fmt.Fprintf(&b, "Можно: %s.\n", strings.Join(r.Allowed, "; "))
	}
	if len(r.Forbidden) > 0 {
		fmt.Fprintf(&b, "Нельзя на этом этапе: %s.", strings.Join(r.Forbidden, "; "))
	}
	if st.Stage == domain.StageBodyWork {
		if st.MovementOffered {
			b.WriteString("\nМикро-движение уже предлагалось, не повторяй его.")
		} else {
			b.WriteString("\nПредложи небольшое движение: «Позволь себе немного подвигать плечами» или глубокий вдох.")
		}
	}
	if st.Stage < domain.LastStage && turnGateMet(st) && !contentGateMet(st) {
		fmt.Fprintf(&b, "\nЕщё не получено: %s. Не переходи дальше, пока клиент этого не назвал.", r.Missing)
	}
	return b.String()
}
