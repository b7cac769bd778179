// Package filter decides whether a fetched record should be deleted, based
// on the account's saved filter settings.
package filter

import (
	"time"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/reddit"
)

// ShouldDelete reports whether the record passes the account's filters.
// With no filters configured, everything is deleted. A record is kept when
// it is younger than MaxHours, scores above MinimumScore, or belongs to an
// excluded subreddit.
func ShouldDelete(account *config.AccountInfo, info reddit.DeletionInfo) bool {
	return shouldDeleteAt(account, info, time.Now())
}

func shouldDeleteAt(account *config.AccountInfo, info reddit.DeletionInfo, now time.Time) bool {
	if account.MaxHours == nil && account.MinimumScore == nil && len(account.ExcludedSubreddits) == 0 {
		return true
	}

	ageHours := int(now.Sub(time.Unix(int64(info.CreatedUTC), 0)).Hours())
	if account.MaxHours != nil && *account.MaxHours > ageHours {
		return false
	}
	if account.MinimumScore != nil && *account.MinimumScore < info.Score {
		return false
	}
	for _, subreddit := range account.ExcludedSubreddits {
		if subreddit == info.Subreddit {
			return false
		}
	}
	return true
}
