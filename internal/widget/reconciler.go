package widget

import (
	"sort"
	"time"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

type idSet map[string]struct{}

func idsOf(msgs []models.Message) idSet {
	set := make(idSet, len(msgs))
	for _, m := range msgs {
		set[m.ID] = struct{}{}
	}
	return set
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// withoutIDs returns the messages of msgs whose id is not in drop, keeping order.
// Applying it twice with the same set is a no-op.
func withoutIDs(msgs []models.Message, drop idSet) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if !drop.has(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// Renderable merges the welcome message, the visible confirmed transcript and
// the unconfirmed local echoes into display order. The sort is stable so equal
// timestamps keep insertion order: welcome, then confirmed, then local.
func Renderable(welcome *models.Message, confirmed, local []models.Message) []models.Message {
	out := make([]models.Message, 0, len(confirmed)+len(local)+1)
	if welcome != nil {
		out = append(out, *welcome)
	}
	out = append(out, confirmed...)
	out = append(out, withoutIDs(local, idsOf(confirmed))...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func latestTimestamp(groups ...[]models.Message) time.Time {
	var latest time.Time
	for _, msgs := range groups {
		for _, m := range msgs {
			if m.Timestamp.After(latest) {
				latest = m.Timestamp
			}
		}
	}
	return latest
}
