// Package processor decides what to do with each submission and inbox event
// and drives fetching, rendering, publishing and replying.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"titletoimagebot/internal/compositor"
	"titletoimagebot/internal/domain"
	"titletoimagebot/internal/layout"
	"titletoimagebot/internal/publisher"
)

const fallbackImageSuffix = ".jpg"

var animatedSuffixes = []string{".gif", ".gifv"}

type Ledger interface {
	MessageExists(ctx context.Context, messageID string) (bool, error)
	InsertMessage(ctx context.Context, message domain.Message) error
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, bool, error)
	InsertSubmission(ctx context.Context, submission domain.Submission) error
	SetSubmissionRetry(ctx context.Context, submissionID string, forgetMessage bool, messageID string) error
	ClearSubmissionRetry(ctx context.Context, submissionID string) error
	SetSubmissionImgurURL(ctx context.Context, submissionID string, imgurURL string) error
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

type Renderer interface {
	Render(src image.Image, title string, mode layout.Mode) (compositor.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, img image.Image, cfg domain.UploadConfig) (publisher.Result, error)
}

// Feed is the subset of the Reddit API the processor acts on.
type Feed interface {
	Submission(ctx context.Context, id string) (domain.FeedItem, error)
	Reply(ctx context.Context, parentFullname string, text string) error
	MarkRead(ctx context.Context, fullname string) error
	SendMessage(ctx context.Context, to, subject, text string) error
}

type Options struct {
	BotName   string
	OwnerName string
	SourceURL string
	// ScoreThresholds maps lowercase subreddit names to the minimum score a
	// submission needs before it is processed without a mention.
	ScoreThresholds map[string]int
	// DelimitedSubreddits use delimiter layout and the rhyme filter.
	DelimitedSubreddits []string
	RhymeTriggers       []string
	// MaxAttempts bounds retries of a single submission. Zero disables the bound.
	MaxAttempts int
}

type Processor struct {
	ledger    Ledger
	fetcher   ImageFetcher
	renderer  Renderer
	publisher Publisher
	feed      Feed
	opts      Options
	titleRe   *regexp.Regexp
	log       *slog.Logger
}

func New(
	ledger Ledger,
	fetcher ImageFetcher,
	renderer Renderer,
	pub Publisher,
	feed Feed,
	opts Options,
	log *slog.Logger,
) *Processor {
	delimited := make([]string, 0, len(opts.DelimitedSubreddits))
	for _, sub := range opts.DelimitedSubreddits {
		delimited = append(delimited, strings.ToLower(strings.TrimSpace(sub)))
	}
	opts.DelimitedSubreddits = delimited

	thresholds := make(map[string]int, len(opts.ScoreThresholds))
	for sub, score := range opts.ScoreThresholds {
		thresholds[strings.ToLower(strings.TrimSpace(sub))] = score
	}
	opts.ScoreThresholds = thresholds

	return &Processor{
		ledger:    ledger,
		fetcher:   fetcher,
		renderer:  renderer,
		publisher: pub,
		feed:      feed,
		opts:      opts,
		titleRe:   CustomTitleRe(opts.BotName),
		log:       log,
	}
}

// ProcessSubmission runs one submission through the pipeline. Items that
// cannot be processed are logged and skipped; the returned error is reserved
// for failures of the feed, host or ledger that should abort the cycle.
func (p *Processor) ProcessSubmission(ctx context.Context, item domain.FeedItem, origin Origin) error {
	log := p.log.With("submissionID", item.ID, "subreddit", item.Subreddit)

	if item.Author == "" {
		log.DebugContext(ctx, "Submission author is deleted, skipping")
		return nil
	}

	trigger, triggered := triggerOf(origin)
	sub := strings.ToLower(item.Subreddit)

	if threshold, ok := p.opts.ScoreThresholds[sub]; ok && !triggered && item.Score < threshold {
		log.DebugContext(ctx, "Submission score is below threshold, skipping",
			"score", item.Score,
			"threshold", threshold)
		return nil
	}

	entry, found, err := p.ledger.GetSubmission(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}

	if found {
		if !entry.Retry && !triggered {
			log.DebugContext(ctx, "Submission is already processed, skipping")
			return nil
		}

		if p.opts.MaxAttempts > 0 && entry.Attempts >= p.opts.MaxAttempts {
			log.WarnContext(ctx, "Submission reached max attempts, skipping",
				"attempts", entry.Attempts,
				"maxAttempts", p.opts.MaxAttempts)
			return nil
		}

		log.InfoContext(ctx, "Reprocessing submission",
			"retry", entry.Retry,
			"triggered", triggered,
			"published", entry.ImgurURL != "")
	} else {
		log.InfoContext(ctx, "Found new submission",
			"title", item.Title)

		if err = p.ledger.InsertSubmission(ctx, domain.Submission{
			ID:     item.ID,
			Author: item.Author,
			Title:  item.Title,
			URL:    item.URL,
		}); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
	}

	delimited := slices.Contains(p.opts.DelimitedSubreddits, sub)

	if delimited && !triggered && !p.hasRhymeTrigger(item.Title) {
		log.InfoContext(ctx, "Title is probably not part of a rhyme, skipping")
		return nil
	}

	if isAnimated(item.URL) {
		log.InfoContext(ctx, "Image is animated, skipping",
			"url", item.URL)
		return nil
	}

	src, err := p.fetchImage(ctx, log, item.URL)
	if err != nil {
		if errors.Is(err, domain.ErrUndecodable) {
			log.ErrorContext(ctx, "Failed to decode image, skipping",
				"error", err,
				"url", item.URL)
			return nil
		}
		return fmt.Errorf("fetch image: %w", err)
	}

	title := item.Title
	if triggered && trigger.Title != "" {
		title = trigger.Title
	}

	mode := layout.Wrapped
	if delimited {
		mode = layout.Delimited
	}

	rendered, err := p.renderer.Render(src, title, mode)
	if err != nil {
		log.ErrorContext(ctx, "Failed to render image, skipping",
			"error", err,
			"title", title)
		return nil
	}

	result, err := p.publisher.Publish(ctx, rendered.Image, domain.UploadConfig{
		Name:        item.ID,
		Title:       fmt.Sprintf(`"%s" by /u/%s`, item.Title, item.Author),
		Description: "https://redd.it/" + item.ID,
	})
	if err != nil {
		return fmt.Errorf("publish image: %w", err)
	}

	switch result.Outcome {
	case publisher.RateLimited:
		log.ErrorContext(ctx, "Image host is rate limited, setting retry flag")
		return p.setRetry(ctx, item.ID, origin)

	case publisher.Failed:
		log.ErrorContext(ctx, "Failed to upload image, skipping")
		return nil
	}

	if err = p.ledger.SetSubmissionImgurURL(ctx, item.ID, result.URL); err != nil {
		return fmt.Errorf("set imgur URL: %w", err)
	}

	text := RenderReply(Reply{
		ImageURL:     result.URL,
		SubmissionID: item.ID,
		Upscaled:     rendered.Upscaled,
		BotName:      p.opts.BotName,
		SourceURL:    p.opts.SourceURL,
	})

	parent := item.Fullname
	if triggered {
		parent = trigger.Event.Fullname
	}

	if err = p.feed.Reply(ctx, parent, text); err != nil {
		if errors.Is(err, domain.ErrPlatform) {
			log.ErrorContext(ctx, "Reddit API error, setting retry flag",
				"error", err)
			return p.setRetry(ctx, item.ID, origin)
		}

		log.ErrorContext(ctx, "Failed to reply, skipping",
			"error", err)
		return nil
	}

	if err = p.ledger.ClearSubmissionRetry(ctx, item.ID); err != nil {
		return fmt.Errorf("clear retry flag: %w", err)
	}

	log.InfoContext(ctx, "Submission is processed",
		"imgurURL", result.URL,
		"upscaled", rendered.Upscaled)

	return nil
}

// fetchImage retries once with a ".jpg" suffix when the first response
// cannot be decoded.
func (p *Processor) fetchImage(ctx context.Context, log *slog.Logger, url string) (image.Image, error) {
	img, err := p.fetcher.Fetch(ctx, url)
	if err == nil || !errors.Is(err, domain.ErrUndecodable) {
		return img, err
	}

	log.WarnContext(ctx, "Failed to decode image, trying with suffix",
		"error", err,
		"url", url,
		"suffix", fallbackImageSuffix)

	return p.fetcher.Fetch(ctx, url+fallbackImageSuffix)
}

func (p *Processor) setRetry(ctx context.Context, submissionID string, origin Origin) error {
	var (
		forget    bool
		messageID string
	)
	if trigger, ok := triggerOf(origin); ok {
		forget = true
		messageID = trigger.Event.ID
	}

	if err := p.ledger.SetSubmissionRetry(ctx, submissionID, forget, messageID); err != nil {
		return fmt.Errorf("set retry flag: %w", err)
	}

	return nil
}

func (p *Processor) hasRhymeTrigger(title string) bool {
	title = strings.ToLower(title)

	for _, trigger := range p.opts.RhymeTriggers {
		if trigger != "" && strings.Contains(title, strings.ToLower(trigger)) {
			return true
		}
	}

	return false
}

func isAnimated(url string) bool {
	for _, suffix := range animatedSuffixes {
		if strings.HasSuffix(url, suffix) {
			return true
		}
	}
	return false
}
