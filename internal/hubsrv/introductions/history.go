package introductions

import (
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

// LatestAction returns the most recent history action by creation time. The
// second return is false when the history is empty, meaning the introduction
// has never been revoked.
func LatestAction(items []store.IntroductionHistoryItem) (store.HistoryAction, bool) {
	if len(items) == 0 {
		return "", false
	}
	latest := items[0]
	for _, item := range items[1:] {
		if !item.CreatedAt.Before(latest.CreatedAt) {
			latest = item
		}
	}
	return latest.Action, true
}
