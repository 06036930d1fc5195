package session

import (
	"context"
	"testing"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// say runs one committed turn and returns the stored entry afterwards.
func say(t *testing.T, reg *Registry, id, text string) *Entry {
	t.Helper()
	turn, err := reg.Begin(context.Background(), id, "")
	require.NoError(t, err)
	turn.Receive(text)
	_ = turn.Prompt()
	turn.Reply("ответ")
	turn.Commit()
	e, err := reg.Get(turn.Draft.Session.ID)
	require.NoError(t, err)
	return e
}

func TestFirstMessageDetectsScenarioAndStaysAtFirstStage(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "Меня мучает тревога")

	assert.Equal(t, "anxiety", e.Session.ScenarioID)
	assert.Equal(t, "fear-exploration", e.Session.ScriptID)
	assert.Equal(t, domain.FirstStage, e.State.Stage)
	assert.Equal(t, 1, e.State.ResponseCount)
	require.NotNil(t, e.State.RequestType)
	assert.Equal(t, domain.RequestFear, *e.State.RequestType)
}

func TestScenarioIsLockedOnceSet(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "тревога")
	e = say(t, reg, e.Session.ID, "и ещё выгорание")
	assert.Equal(t, "anxiety", e.Session.ScenarioID)
}

func TestRequestTypeLocksOnceSpecific(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "просто поговорить")
	assert.Equal(t, domain.RequestGeneral, *e.State.RequestType)

	e = say(t, reg, e.Session.ID, "я боюсь темноты")
	assert.Equal(t, domain.RequestFear, *e.State.RequestType)
	assert.Equal(t, "fear-exploration", e.Session.ScriptID)

	e = say(t, reg, e.Session.ID, "муж бесит")
	assert.Equal(t, domain.RequestFear, *e.State.RequestType)
	assert.Equal(t, "fear-exploration", e.Session.ScriptID)
}

func TestClientNameIsWriteOnce(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "добрый день")
	assert.Nil(t, e.State.Context.ClientName)

	e = say(t, reg, e.Session.ID, "меня зовут Анна")
	require.NotNil(t, e.State.Context.ClientName)
	assert.Equal(t, "Анна", *e.State.Context.ClientName)

	turn, err := reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)
	turn.Draft.State.Context.ClientName = domain.Ptr("Ира")
	turn.Receive("зови меня Маша")
	assert.Equal(t, "Ира", *turn.Draft.State.Context.ClientName)
	turn.Discard()
}

func TestImportanceRatingLastValidWins(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "8 из 10")
	assert.Equal(t, 8, *e.State.ImportanceRating)
	e = say(t, reg, e.Session.ID, "скорее 5/10")
	assert.Equal(t, 5, *e.State.ImportanceRating)
	e = say(t, reg, e.Session.ID, "не знаю")
	assert.Equal(t, 5, *e.State.ImportanceRating)
	assert.True(t, e.State.Confused)
}

func TestImportanceRatingIgnoresIncidentalNumbersLater(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "это важно для меня, 9 из 10")
	require.NotNil(t, e.State.ImportanceRating)
	assert.Equal(t, 9, *e.State.ImportanceRating)

	turn, err := reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)
	turn.Draft.State.Stage = domain.StageNeedDiscovery
	turn.Receive("я опоздал на 3 минуты, энергии на 2")
	assert.Equal(t, 9, *turn.Draft.State.ImportanceRating)
	turn.Discard()

	// An answer to an explicit rating question still counts.
	turn, err = reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)
	turn.Draft.State.Stage = domain.StageNeedDiscovery
	turn.Draft.Session.Append(domain.Message{Role: domain.RoleTherapist, Content: "Насколько это важно сейчас, от 1 до 10?"})
	turn.Receive("на 6")
	assert.Equal(t, 6, *turn.Draft.State.ImportanceRating)
	turn.Discard()
}

func TestExtractorsWaitForTheirStage(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e := say(t, reg, "", "я хочу спокойствия, чувствую тепло в груди")
	assert.Nil(t, e.State.Context.CurrentGoal)
	assert.Nil(t, e.State.Context.BodySensation)
}

func TestFullSessionWalk(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	script := []struct {
		text  string
		after domain.Stage
	}{
		{"Привет, я Анна", domain.StageSpaceCreation},
		{"мне тревожно", domain.StageContextGathering},
		{"это важно, на 9", domain.StageContextGathering},
		{"давно так", domain.StageRequestClarification},
		{"я хочу чувствовать спокойствие", domain.StageRequestClarification},
		{"да", domain.StageStrategyExploration},
		{"обычно я терплю", domain.StageStrategyExploration},
		{"да", domain.StageNeedDiscovery},
		{"мне важно быть принятым", domain.StageNeedDiscovery},
		{"да", domain.StageBodyWork},
		{"чувствую тепло в груди", domain.StageBodyWork},
		{"энергии на 7", domain.StageImageCreation},
		{"похоже на солнце над морем", domain.StageImageCreation},
		{"да", domain.StageMetaPosition},
		{"вижу", domain.StageMetaPosition},
		{"да", domain.StageIntegration},
		{"стало легче", domain.StageIntegration},
		{"да", domain.StageAuthoredAction},
		{"я буду гулять по утрам", domain.StageAuthoredAction},
		{"я попробую отдыхать. Я буду гулять по утрам", domain.StageClosing},
		{"спасибо", domain.StageClosing},
	}

	id := ""
	var e *Entry
	for i, step := range script {
		e = say(t, reg, id, step.text)
		id = e.Session.ID
		require.Equal(t, step.after, e.State.Stage, "step %d %q", i, step.text)
		for j := 1; j < len(e.State.StageHistory); j++ {
			require.Less(t, e.State.StageHistory[j-1], e.State.StageHistory[j])
		}
		if n := len(e.State.StageHistory); n > 0 {
			require.Less(t, e.State.StageHistory[n-1], e.State.Stage)
		}
		assert.Equal(t, e.State.Stage.Name(), e.Session.Phase)
	}

	c := e.State.Context
	assert.Equal(t, domain.Stages()[:10], e.State.StageHistory)
	assert.Equal(t, "Анна", *c.ClientName)
	assert.Equal(t, "чувствовать спокойствие", *c.CurrentGoal)
	assert.Equal(t, "терплю", c.StageData[domain.StageDataStrategy])
	assert.Equal(t, "быть принятым", *c.DeepNeed)
	assert.Equal(t, "чувствую тепло в груди", *c.BodySensation)
	assert.Equal(t, 7, *c.EnergyLevel)
	assert.Equal(t, "солнце над морем", *c.Metaphor)
	assert.Equal(t, []string{"буду гулять по утрам", "попробую отдыхать"}, c.NewActions)
	require.NotNil(t, c.Homework)
	assert.Equal(t, catalog.PracticeMetaphorJournal, *c.Homework)
	assert.True(t, e.State.IntegrationComplete)
	assert.True(t, e.State.MovementOffered)
	assert.Len(t, e.Session.Messages, 2*len(script))
}

func TestPromptReflectsDraft(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	turn, err := reg.Begin(context.Background(), "", "")
	require.NoError(t, err)
	defer turn.Discard()

	turn.Receive("меня зовут Олег, меня раздражают коллеги")
	p := turn.Prompt()
	assert.Contains(t, p, "Имя клиента: Олег")
	assert.Contains(t, p, "Я раздражаюсь, когда")
	assert.Contains(t, p, "## ТЕКУЩИЙ СЦЕНАРИЙ: «На взводе»")
}
