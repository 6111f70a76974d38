package bot

import (
	"context"
	"fmt"
	"log/slog"

	"titletoimagebot/internal/domain"
	"titletoimagebot/internal/processor"
)

const (
	// Own comments at or below this score are deleted.
	badCommentScore = -1
	commentsLimit   = 100
)

type Feed interface {
	Hot(ctx context.Context, subreddits []string, limit int) ([]domain.FeedItem, error)
	Inbox(ctx context.Context, limit int) ([]domain.TriggerEvent, error)
	Comments(ctx context.Context, limit int) ([]domain.Comment, error)
	DeleteComment(ctx context.Context, fullname string) error
}

type Processor interface {
	ProcessSubmission(ctx context.Context, item domain.FeedItem, origin processor.Origin) error
	ProcessMessage(ctx context.Context, event domain.TriggerEvent) error
}

type Bot struct {
	feed       Feed
	processor  Processor
	subreddits []string
	limit      int
	log        *slog.Logger
}

func New(
	feed Feed,
	proc Processor,
	subreddits []string,
	limit int,
	log *slog.Logger,
) *Bot {
	return &Bot{
		feed:       feed,
		processor:  proc,
		subreddits: subreddits,
		limit:      limit,
		log:        log,
	}
}

// RunCycle processes the hot submissions of the watched subreddits in feed
// order, then the inbox, then removes downvoted comments. It stops at the
// first error; whatever was left is picked up by the next cycle.
func (b *Bot) RunCycle(ctx context.Context) error {
	b.log.DebugContext(ctx, "Processing submissions",
		"subreddits", b.subreddits,
		"limit", b.limit)

	items, err := b.feed.Hot(ctx, b.subreddits, b.limit)
	if err != nil {
		return fmt.Errorf("get hot submissions: %w", err)
	}

	for _, item := range items {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = b.processor.ProcessSubmission(ctx, item, processor.Direct{}); err != nil {
			return fmt.Errorf("process submission %s: %w", item.ID, err)
		}
	}

	b.log.DebugContext(ctx, "Processing messages",
		"limit", b.limit)

	events, err := b.feed.Inbox(ctx, b.limit)
	if err != nil {
		return fmt.Errorf("get inbox: %w", err)
	}

	for _, event := range events {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = b.processor.ProcessMessage(ctx, event); err != nil {
			return fmt.Errorf("process message %s: %w", event.ID, err)
		}
	}

	return b.removeBadComments(ctx)
}

func (b *Bot) removeBadComments(ctx context.Context) error {
	comments, err := b.feed.Comments(ctx, commentsLimit)
	if err != nil {
		return fmt.Errorf("get own comments: %w", err)
	}

	for _, comment := range comments {
		if comment.Score > badCommentScore {
			continue
		}

		b.log.InfoContext(ctx, "Removing bad comment",
			"commentID", comment.ID,
			"score", comment.Score)

		if err = b.feed.DeleteComment(ctx, comment.Fullname); err != nil {
			return fmt.Errorf("delete comment %s: %w", comment.ID, err)
		}
	}

	return nil
}
