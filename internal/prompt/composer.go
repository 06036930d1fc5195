// Package prompt assembles the system instruction sent to the language
// model for a turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/detect"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/stage"
)

// View is everything a section may look at. Sections must not mutate it.
type View struct {
	Session *domain.Session
	State   *domain.SessionState
	Catalog *catalog.Catalog
	// PriorTherapist is the therapist reply preceding the current client
	// message, used to pick a helping question.
	PriorTherapist string
}

// Section renders one block of the prompt. ok is false when the section
// has nothing to say for this view.
type Section struct {
	Name  string
	Build func(View) (text string, ok bool)
}

// Sections returns the section builders in prompt order.
func Sections() []Section {
	return []Section{
		{"methodology", buildMethodology},
		{"stage", buildStage},
		{"authorship", buildAuthorship},
		{"name", buildName},
		{"importance", buildImportance},
		{"confusion", buildConfusion},
		{"scenario", buildScenario},
		{"request-type", buildRequestType},
		{"script", buildScript},
		{"homework", buildHomework},
		{"progress", buildProgress},
	}
}

// Compose renders all present sections joined by a blank line.
func Compose(v View) string {
	var parts []string
	for _, s := range Sections() {
		if text, ok := s.Build(v); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func buildMethodology(View) (string, bool) {
	return methodology, true
}

func buildStage(v View) (string, bool) {
	return stage.Directive(v.State), true
}

func buildAuthorship(v View) (string, bool) {
	r, ok := detect.VictimVoice(v.State.LastClientMessage)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("## АВТОРСТВО\nКлиент говорит из позиции жертвы: «%s». Мягко помоги переформулировать от первого лица, например: «%s»", r.Phrase, r.Suggestion), true
}

func buildName(v View) (string, bool) {
	name := v.State.Context.ClientName
	if name == nil {
		return "", false
	}
	return fmt.Sprintf("## КОНТЕКСТ КЛИЕНТА\nИмя клиента: %s. Используй имя в своих ответах.", *name), true
}

func buildImportance(v View) (string, bool) {
	r := v.State.ImportanceRating
	if r == nil {
		return "", false
	}
	text := fmt.Sprintf("## ВАЖНОСТЬ ЗАПРОСА\nОценка важности запроса: %d/10.", *r)
	if *r < 8 {
		text += " Оценка ниже 8: поищи более глубокий контекст или более значимую цель."
	}
	return text, true
}

func buildConfusion(v View) (string, bool) {
	if !v.State.Confused {
		return "", false
	}
	q := detect.HelpingQuestion(v.PriorTherapist, v.State.Stage)
	return fmt.Sprintf("## ВНИМАНИЕ: клиент говорит «не знаю»\nИспользуй технику «если бы». Например: «%s»", q), true
}

func buildScenario(v View) (string, bool) {
	if !v.Session.HasScenario() {
		return "", false
	}
	sc, err := v.Catalog.Scenario(v.Session.ScenarioID)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("## ТЕКУЩИЙ СЦЕНАРИЙ: «%s»\n%s\nТипичные ключевые слова: %s", sc.Name, sc.Description, strings.Join(sc.Keywords, ", ")), true
}

func buildRequestType(v View) (string, bool) {
	rt := v.State.RequestType
	if rt == nil || *rt == domain.RequestGeneral {
		return "", false
	}
	g := v.Catalog.RequestGuidance(*rt)
	if g == "" {
		return "", false
	}
	return "## ТИП ЗАПРОСА\n" + g, true
}

func buildScript(v View) (string, bool) {
	sc := v.Catalog.Script(v.Session.ScriptID)
	if sc == nil {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## СКРИПТ: «%s»\n%s", sc.Name, sc.Description)
	if len(sc.Steps) > 0 {
		b.WriteString("\nРазделы скрипта:")
		for i, step := range sc.Steps {
			fmt.Fprintf(&b, "\n%d. %s", i+1, step)
		}
	}
	return b.String(), true
}

func buildHomework(v View) (string, bool) {
	if v.State.Stage != domain.StageClosing {
		return "", false
	}
	id := SelectHomework(v.State.Context)
	if v.State.Context.Homework != nil {
		id = *v.State.Context.Homework
	}
	p := v.Catalog.Practice(id)
	if p == nil {
		return "", false
	}
	return fmt.Sprintf("## ПРАКТИКА ВНЕДРЕНИЯ\nПредложи клиенту практику «%s»: %s", p.Name, p.Description), true
}

func buildProgress(v View) (string, bool) {
	st := v.State
	var lines []string
	if len(st.StageHistory) > 0 {
		names := make([]string, 0, len(st.StageHistory))
		for _, s := range st.StageHistory {
			names = append(names, s.Name())
		}
		lines = append(lines, "Пройденные этапы: "+strings.Join(names, " → "))
	}
	c := st.Context
	addField := func(label string, p *string) {
		if p != nil {
			lines = append(lines, label+": "+*p)
		}
	}
	addField("Имя клиента", c.ClientName)
	addField("Цель", c.CurrentGoal)
	if s, ok := c.StageData[domain.StageDataStrategy]; ok {
		lines = append(lines, "Стратегия: "+s)
	}
	addField("Глубинная потребность", c.DeepNeed)
	addField("Телесное ощущение", c.BodySensation)
	if c.EnergyLevel != nil {
		lines = append(lines, fmt.Sprintf("Уровень энергии: %d/10", *c.EnergyLevel))
	}
	addField("Образ", c.Metaphor)
	if len(c.NewActions) > 0 {
		lines = append(lines, "Новые действия: "+strings.Join(c.NewActions, "; "))
	}
	if c.Homework != nil {
		hw := *c.Homework
		if p := v.Catalog.Practice(hw); p != nil {
			hw = p.Name
		}
		lines = append(lines, "Домашнее задание: "+hw)
	}
	if len(lines) == 0 {
		return "", false
	}
	return "## ПРОГРЕСС СЕССИИ\n" + strings.Join(lines, "\n"), true
}
