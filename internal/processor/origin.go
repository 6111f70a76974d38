package processor

import "titletoimagebot/internal/domain"

// Origin tells ProcessSubmission why an item is being processed. It is either
// Direct or Triggered.
type Origin interface {
	isOrigin()
}

// Direct is an item found while scanning the watched subreddits.
type Direct struct{}

// Triggered is an item the bot was summoned to by a mention. Title overrides
// the submission title when not empty.
type Triggered struct {
	Event domain.TriggerEvent
	Title string
}

func (Direct) isOrigin()    {}
func (Triggered) isOrigin() {}

func triggerOf(origin Origin) (Triggered, bool) {
	t, ok := origin.(Triggered)
	return t, ok
}
