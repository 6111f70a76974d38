package processor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"titletoimagebot/internal/domain"
)

const (
	subjectMention      = "username mention"
	subjectCommentReply = "comment reply"
	subjectFeedback     = "feedback"

	autoModerator = "automoderator"

	// Longer messages containing "good bot" are left unread for the owner.
	maxBotRatingLength = 12
)

// ProcessMessage handles one inbox event. Every event is recorded before any
// action so it is handled at most once, unless a failed run forgets it again.
func (p *Processor) ProcessMessage(ctx context.Context, event domain.TriggerEvent) error {
	log := p.log.With("messageID", event.ID, "author", event.Author)

	if event.Author == "" {
		return nil
	}

	exists, err := p.ledger.MessageExists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if exists {
		log.DebugContext(ctx, "Message is already processed, skipping")
		return nil
	}

	subject := strings.ToLower(event.Subject)
	body := strings.ToLower(event.Body)

	if err = p.ledger.InsertMessage(ctx, domain.Message{
		ID:      event.ID,
		Author:  event.Author,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if strings.EqualFold(event.Author, p.opts.BotName) {
		log.DebugContext(ctx, "Message was sent by the bot, skipping")
		return nil
	}

	switch {
	case p.isMention(event, subject, body):
		return p.processMention(ctx, event)

	case strings.HasPrefix(subject, subjectFeedback):
		return p.forwardFeedback(ctx, event)

	case isBotRating(body, "good bot"), isBotRating(body, "bad bot"):
		log.DebugContext(ctx, "Bot rating found, marking as read")

		if err = p.feed.MarkRead(ctx, event.Fullname); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}

	return nil
}

func (p *Processor) isMention(event domain.TriggerEvent, subject, body string) bool {
	if !event.IsComment {
		return false
	}

	return subject == subjectMention ||
		(subject == subjectCommentReply && strings.Contains(body, "u/"+strings.ToLower(p.opts.BotName)))
}

func (p *Processor) processMention(ctx context.Context, event domain.TriggerEvent) error {
	log := p.log.With("messageID", event.ID, "author", event.Author)

	if strings.EqualFold(event.Author, autoModerator) {
		if err := p.feed.MarkRead(ctx, event.Fullname); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		return nil
	}

	if event.SubmissionID == "" {
		log.WarnContext(ctx, "Mention has no submission, skipping")
		return nil
	}

	title, ok := ExtractCustomTitle(p.titleRe, event.Body)
	if ok {
		log.DebugContext(ctx, "Found custom title",
			"title", title)
	}

	item, err := p.feed.Submission(ctx, event.SubmissionID)
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}

	if err = p.ProcessSubmission(ctx, item, Triggered{Event: event, Title: title}); err != nil {
		return fmt.Errorf("process mentioned submission: %w", err)
	}

	if err = p.feed.MarkRead(ctx, event.Fullname); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	return nil
}

func (p *Processor) forwardFeedback(ctx context.Context, event domain.TriggerEvent) error {
	if p.opts.OwnerName == "" {
		p.log.WarnContext(ctx, "Owner is not configured, dropping feedback",
			"messageID", event.ID,
			"author", event.Author)
		return nil
	}

	subject := fmt.Sprintf("%s feedback from %s", p.opts.BotName, event.Author)
	body := fmt.Sprintf("Subject: %s\n\nBody: %s", event.Subject, event.Body)

	if err := p.feed.SendMessage(ctx, p.opts.OwnerName, subject, body); err != nil {
		return fmt.Errorf("forward feedback: %w", err)
	}

	p.log.InfoContext(ctx, "Forwarded feedback to owner",
		"messageID", event.ID,
		"author", event.Author,
		"owner", p.opts.OwnerName)

	return nil
}

func isBotRating(body, rating string) bool {
	return strings.Contains(body, rating) && utf8.RuneCountInString(body) < maxBotRatingLength
}
