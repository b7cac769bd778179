package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// listingPageSize is the maximum page size Reddit allows.
const listingPageSize = 100

// listingEnvelope is the wire shape of a paginated listing response:
// {"data": {"children": [{"data": <record>}], "after": "cursor"|null}}.
// The cursor is null on the final page.
type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
		After *string `json:"after"`
	} `json:"data"`
}

// Post is a submission record from /user/{username}/submitted.
type Post struct {
	Saved      bool    `json:"saved"`
	Name       string  `json:"name"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
}

// Comment is a comment record from /user/{username}/comments.
type Comment struct {
	Saved      bool    `json:"saved"`
	Name       string  `json:"name"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	Body       string  `json:"body"`
}

// RecordKind distinguishes the two listing record variants.
type RecordKind string

const (
	// KindPost is a submission.
	KindPost RecordKind = "submission"
	// KindComment is a comment.
	KindComment RecordKind = "comment"
)

// DeletionInfo is the normalized view of a listing record consumed by the
// deletion filter. Name is the fullname used as the deletion target.
type DeletionInfo struct {
	Kind       RecordKind
	Saved      bool
	Name       string
	CreatedUTC float64
	Subreddit  string
	Score      int
	Selftext   string
	URL        string
	Title      string
	Body       string
}

// DeletionInfo maps a post to the normalized record view.
func (p Post) DeletionInfo() DeletionInfo {
	return DeletionInfo{
		Kind:       KindPost,
		Saved:      p.Saved,
		Name:       p.Name,
		CreatedUTC: p.CreatedUTC,
		Subreddit:  p.Subreddit,
		Score:      p.Score,
		Selftext:   p.Selftext,
		URL:        p.URL,
		Title:      p.Title,
	}
}

// DeletionInfo maps a comment to the normalized record view.
func (c Comment) DeletionInfo() DeletionInfo {
	return DeletionInfo{
		Kind:       KindComment,
		Saved:      c.Saved,
		Name:       c.Name,
		CreatedUTC: c.CreatedUTC,
		Subreddit:  c.Subreddit,
		Score:      c.Score,
		Body:       c.Body,
	}
}

// gatherAll walks a cursor-paginated listing endpoint and accumulates every
// record across all pages, in page order. A record that fails to decode
// aborts the whole traversal; partial results are never returned. The
// traversal always starts from the first page.
func gatherAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var (
		records []T
		after   string
	)

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(listingPageSize))
		params.Set("show", "all")
		params.Set("t", "all")
		if after != "" {
			params.Set("after", after)
		}

		body, err := c.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		var envelope listingEnvelope
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}

		for _, child := range envelope.Data.Children {
			var record T
			if err := json.Unmarshal(child.Data, &record); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecode, err)
			}
			records = append(records, record)
		}

		if envelope.Data.After == nil || *envelope.Data.After == "" {
			return records, nil
		}
		after = *envelope.Data.After
	}
}
