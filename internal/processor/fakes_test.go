package processor

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"

	"titletoimagebot/internal/compositor"
	"titletoimagebot/internal/domain"
	"titletoimagebot/internal/layout"
	"titletoimagebot/internal/publisher"
)

type fakeLedger struct {
	messages    map[string]domain.Message
	submissions map[string]domain.Submission
	inserts     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		messages:    make(map[string]domain.Message),
		submissions: make(map[string]domain.Submission),
	}
}

func (l *fakeLedger) MessageExists(_ context.Context, id string) (bool, error) {
	_, ok := l.messages[id]
	return ok, nil
}

func (l *fakeLedger) InsertMessage(_ context.Context, m domain.Message) error {
	l.messages[m.ID] = m
	return nil
}

func (l *fakeLedger) GetSubmission(_ context.Context, id string) (domain.Submission, bool, error) {
	s, ok := l.submissions[id]
	return s, ok, nil
}

func (l *fakeLedger) InsertSubmission(_ context.Context, s domain.Submission) error {
	if _, ok := l.submissions[s.ID]; ok {
		return errors.New("duplicate submission")
	}
	l.inserts++
	l.submissions[s.ID] = s
	return nil
}

func (l *fakeLedger) SetSubmissionRetry(_ context.Context, id string, forget bool, messageID string) error {
	if forget && messageID == "" {
		return errors.New("message ID is required")
	}

	s := l.submissions[id]
	s.Retry = true
	s.Attempts++
	l.submissions[id] = s

	if forget {
		delete(l.messages, messageID)
	}
	return nil
}

func (l *fakeLedger) ClearSubmissionRetry(_ context.Context, id string) error {
	s := l.submissions[id]
	s.Retry = false
	l.submissions[id] = s
	return nil
}

func (l *fakeLedger) SetSubmissionImgurURL(_ context.Context, id string, url string) error {
	s := l.submissions[id]
	s.ImgurURL = url
	l.submissions[id] = s
	return nil
}

type fetchResult struct {
	img image.Image
	err error
}

type fakeFetcher struct {
	results map[string]fetchResult
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (image.Image, error) {
	f.calls = append(f.calls, url)

	r, ok := f.results[url]
	if !ok {
		return testImage(), nil
	}
	return r.img, r.err
}

type renderCall struct {
	title string
	mode  layout.Mode
}

type fakeRenderer struct {
	upscaled bool
	err      error
	calls    []renderCall
}

func (r *fakeRenderer) Render(src image.Image, title string, mode layout.Mode) (compositor.Result, error) {
	r.calls = append(r.calls, renderCall{title: title, mode: mode})
	if r.err != nil {
		return compositor.Result{}, r.err
	}
	return compositor.Result{Image: src, Upscaled: r.upscaled, Lines: []string{title}}, nil
}

type fakePublisher struct {
	result publisher.Result
	err    error
	calls  []domain.UploadConfig
}

func (p *fakePublisher) Publish(_ context.Context, _ image.Image, cfg domain.UploadConfig) (publisher.Result, error) {
	p.calls = append(p.calls, cfg)
	return p.result, p.err
}

type reply struct {
	parent string
	text   string
}

type sentMessage struct {
	to      string
	subject string
	text    string
}

type fakeFeed struct {
	submissions map[string]domain.FeedItem
	replyErr    error
	replies     []reply
	read        []string
	sent        []sentMessage
}

func (f *fakeFeed) Submission(_ context.Context, id string) (domain.FeedItem, error) {
	item, ok := f.submissions[id]
	if !ok {
		return domain.FeedItem{}, errors.New("submission not found")
	}
	return item, nil
}

func (f *fakeFeed) Reply(_ context.Context, parent string, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, reply{parent: parent, text: text})
	return nil
}

func (f *fakeFeed) MarkRead(_ context.Context, fullname string) error {
	f.read = append(f.read, fullname)
	return nil
}

func (f *fakeFeed) SendMessage(_ context.Context, to, subject, text string) error {
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, text: text})
	return nil
}

type harness struct {
	ledger    *fakeLedger
	fetcher   *fakeFetcher
	renderer  *fakeRenderer
	publisher *fakePublisher
	feed      *fakeFeed
	opts      Options
}

func newHarness() *harness {
	return &harness{
		ledger:   newFakeLedger(),
		fetcher:  &fakeFetcher{results: make(map[string]fetchResult)},
		renderer: &fakeRenderer{},
		publisher: &fakePublisher{
			result: publisher.Result{Outcome: publisher.Published, URL: "https://i.imgur.com/xyz.png"},
		},
		feed: &fakeFeed{submissions: make(map[string]domain.FeedItem)},
		opts: Options{
			BotName:             "TitleToImageBot",
			OwnerName:           "owner",
			SourceURL:           "https://example.com/source",
			ScoreThresholds:     map[string]int{"FakeHistoryPorn": 500},
			DelimitedSubreddits: []string{"BoottooBig"},
			RhymeTriggers:       []string{",", ";", "roses"},
		},
	}
}

func (h *harness) processor() *Processor {
	return New(h.ledger, h.fetcher, h.renderer, h.publisher, h.feed, h.opts,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func testItem() domain.FeedItem {
	return domain.FeedItem{
		ID:        "abc",
		Fullname:  "t3_abc",
		Author:    "alice",
		Title:     "Man discovers fire",
		URL:       "https://i.redd.it/abc.png",
		Score:     10,
		Subreddit: "pics",
	}
}

func testMention() domain.TriggerEvent {
	return domain.TriggerEvent{
		ID:           "c1",
		Fullname:     "t1_c1",
		Author:       "bob",
		Subject:      "username mention",
		Body:         `u/TitleToImageBot "A custom title"`,
		IsComment:    true,
		SubmissionID: "abc",
	}
}
