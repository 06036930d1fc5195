package prompt

import (
	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/domain"
)

// SelectHomework picks the practice id for the closing stage. The most
// concrete thing the client found wins: an image, then a body sensation,
// then authored actions.
func SelectHomework(c domain.TherapyContext) string {
	switch {
	case c.Metaphor != nil:
		return catalog.PracticeMetaphorJournal
	case c.BodySensation != nil:
		return catalog.PracticeBodyCheck
	case len(c.NewActions) > 0:
		return catalog.PracticeNewAction
	default:
		return catalog.PracticeMorningConnection
	}
}
