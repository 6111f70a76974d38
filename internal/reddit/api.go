package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"titletoimagebot/internal/domain"

	"github.com/tidwall/gjson"
)

const deletedAuthor = "[deleted]"

var contextLinkRe = regexp.MustCompile(`/comments/([a-z0-9]+)/`)

func (c *Client) Hot(ctx context.Context, subreddits []string, limit int) ([]domain.FeedItem, error) {
	if len(subreddits) == 0 {
		return nil, errors.New("no subreddits")
	}

	path := "/r/" + strings.Join(subreddits, "+") + "/hot"

	body, err := c.get(ctx, path, listingQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("get hot submissions: %w", err)
	}

	var items []domain.FeedItem
	forEachChild(body, func(kind string, data gjson.Result) {
		if kind == "t3" {
			items = append(items, parseSubmission(data))
		}
	})

	return items, nil
}

func (c *Client) Submission(ctx context.Context, id string) (domain.FeedItem, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "t3_")
	if id == "" {
		return domain.FeedItem{}, errors.New("submission ID is empty")
	}

	body, err := c.get(ctx, "/by_id/t3_"+id, url.Values{"raw_json": {"1"}})
	if err != nil {
		return domain.FeedItem{}, fmt.Errorf("get submission: %w", err)
	}

	var (
		item  domain.FeedItem
		found bool
	)
	forEachChild(body, func(kind string, data gjson.Result) {
		if kind == "t3" && !found {
			item = parseSubmission(data)
			found = true
		}
	})

	if !found {
		return domain.FeedItem{}, fmt.Errorf("submission not found (id = %s)", id)
	}

	return item, nil
}

func (c *Client) Inbox(ctx context.Context, limit int) ([]domain.TriggerEvent, error) {
	body, err := c.get(ctx, "/message/inbox", listingQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("get inbox: %w", err)
	}

	var events []domain.TriggerEvent
	forEachChild(body, func(kind string, data gjson.Result) {
		switch kind {
		case "t1", "t4":
			events = append(events, parseInboxItem(kind, data))
		}
	})

	return events, nil
}

// Comments returns the newest comments written by the authenticated user.
func (c *Client) Comments(ctx context.Context, limit int) ([]domain.Comment, error) {
	query := listingQuery(limit)
	query.Set("sort", "new")

	body, err := c.get(ctx, "/user/"+url.PathEscape(c.username)+"/comments", query)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}

	var comments []domain.Comment
	forEachChild(body, func(kind string, data gjson.Result) {
		if kind != "t1" {
			return
		}

		comments = append(comments, domain.Comment{
			ID:       data.Get("id").String(),
			Fullname: data.Get("name").String(),
			Score:    int(data.Get("score").Int()),
		})
	})

	return comments, nil
}

// Reply posts text as a reply to the thing with the given fullname.
func (c *Client) Reply(ctx context.Context, parentFullname string, text string) error {
	body, err := c.post(ctx, "/api/comment", url.Values{
		"api_type": {"json"},
		"thing_id": {parentFullname},
		"text":     {text},
	})
	if err != nil {
		return fmt.Errorf("post comment: %w", err)
	}

	return apiError(body)
}

func (c *Client) MarkRead(ctx context.Context, fullname string) error {
	if _, err := c.post(ctx, "/api/read_message", url.Values{"id": {fullname}}); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}

	return nil
}

func (c *Client) DeleteComment(ctx context.Context, fullname string) error {
	if _, err := c.post(ctx, "/api/del", url.Values{"id": {fullname}}); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	return nil
}

func (c *Client) SendMessage(ctx context.Context, to, subject, text string) error {
	body, err := c.post(ctx, "/api/compose", url.Values{
		"api_type": {"json"},
		"to":       {to},
		"subject":  {subject},
		"text":     {text},
	})
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}

	return apiError(body)
}

func listingQuery(limit int) url.Values {
	return url.Values{
		"limit":    {strconv.Itoa(limit)},
		"raw_json": {"1"},
	}
}

func forEachChild(body []byte, fn func(kind string, data gjson.Result)) {
	gjson.GetBytes(body, "data.children").ForEach(func(_, child gjson.Result) bool {
		fn(child.Get("kind").String(), child.Get("data"))
		return true
	})
}

func parseSubmission(data gjson.Result) domain.FeedItem {
	return domain.FeedItem{
		ID:        data.Get("id").String(),
		Fullname:  data.Get("name").String(),
		Author:    parseAuthor(data.Get("author")),
		Title:     data.Get("title").String(),
		URL:       data.Get("url").String(),
		Score:     int(data.Get("score").Int()),
		Subreddit: data.Get("subreddit").String(),
	}
}

func parseInboxItem(kind string, data gjson.Result) domain.TriggerEvent {
	event := domain.TriggerEvent{
		ID:        data.Get("id").String(),
		Fullname:  data.Get("name").String(),
		Author:    parseAuthor(data.Get("author")),
		Subject:   data.Get("subject").String(),
		Body:      data.Get("body").String(),
		IsComment: kind == "t1" || data.Get("was_comment").Bool(),
	}

	if linkID := data.Get("link_id").String(); linkID != "" {
		event.SubmissionID = strings.TrimPrefix(linkID, "t3_")
	} else if m := contextLinkRe.FindStringSubmatch(data.Get("context").String()); m != nil {
		event.SubmissionID = m[1]
	}

	return event
}

func parseAuthor(r gjson.Result) string {
	author := strings.TrimSpace(r.String())
	if author == deletedAuthor {
		return ""
	}
	return author
}

func apiError(body []byte) error {
	errs := gjson.GetBytes(body, "json.errors").Array()
	if len(errs) == 0 {
		return nil
	}

	fields := errs[0].Array()
	apiErr := &APIError{}
	if len(fields) > 0 {
		apiErr.Code = fields[0].String()
	}
	if len(fields) > 1 {
		apiErr.Message = fields[1].String()
	}
	if len(fields) > 2 {
		apiErr.Field = fields[2].String()
	}

	return apiErr
}
