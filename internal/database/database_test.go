package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"titletoimagebot/internal/domain"
)

func newTestDatabase(t *testing.T) (*Database, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(context.Background(), dbPath, log)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return db, dbPath
}

func mustGetSubmission(t *testing.T, db *Database, id string) (domain.Submission, bool) {
	t.Helper()

	got, found, err := db.GetSubmission(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSubmission() failed: %v", err)
	}

	return got, found
}

func mustMessageExists(t *testing.T, db *Database, id string) bool {
	t.Helper()

	exists, err := db.MessageExists(context.Background(), id)
	if err != nil {
		t.Fatalf("MessageExists() failed: %v", err)
	}

	return exists
}

func TestNewIsIdempotent(t *testing.T) {
	db, dbPath := newTestDatabase(t)
	ctx := context.Background()

	if err := db.InsertSubmission(ctx, domain.Submission{ID: "abc"}); err != nil {
		t.Fatalf("InsertSubmission() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := New(ctx, dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() on existing database failed: %v", err)
	}
	defer reopened.Close()

	if _, found := mustGetSubmission(t, reopened, "abc"); !found {
		t.Error("Expected submission to survive a restart")
	}
}

func TestMessages(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	if mustMessageExists(t, db, "m1") {
		t.Fatal("Expected message not to exist")
	}

	msg := domain.Message{ID: "m1", Author: "alice", Subject: "username mention", Body: "u/bot"}
	if err := db.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage() failed: %v", err)
	}

	if !mustMessageExists(t, db, "m1") {
		t.Fatal("Expected message to exist")
	}

	if err := db.InsertMessage(ctx, msg); err == nil {
		t.Error("Expected duplicate message ID to fail")
	}
	if err := db.InsertMessage(ctx, domain.Message{}); err == nil {
		t.Error("Expected empty message ID to fail")
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	if _, found := mustGetSubmission(t, db, "s1"); found {
		t.Fatal("Expected submission not to exist")
	}

	if err := db.InsertSubmission(ctx, domain.Submission{
		ID:     "s1",
		Author: "bob",
		Title:  "Roses are red, violets are blue",
		URL:    "https://i.redd.it/s1.jpg",
	}); err != nil {
		t.Fatalf("InsertSubmission() failed: %v", err)
	}
	if err := db.InsertSubmission(ctx, domain.Submission{ID: "s1"}); err == nil {
		t.Error("Expected duplicate submission ID to fail")
	}

	got, found := mustGetSubmission(t, db, "s1")
	if !found {
		t.Fatal("Expected submission to exist")
	}
	if got.Author != "bob" || got.Title != "Roses are red, violets are blue" || got.URL != "https://i.redd.it/s1.jpg" {
		t.Errorf("Unexpected submission: %+v", got)
	}
	if got.ImgurURL != "" || got.Retry || got.Attempts != 0 {
		t.Errorf("Expected fresh submission state, got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected creation time to be set")
	}

	if err := db.SetSubmissionImgurURL(ctx, "s1", "https://i.imgur.com/x.png"); err != nil {
		t.Fatalf("SetSubmissionImgurURL() failed: %v", err)
	}
	if err := db.SetSubmissionRetry(ctx, "s1", false, ""); err != nil {
		t.Fatalf("SetSubmissionRetry() failed: %v", err)
	}

	got, _ = mustGetSubmission(t, db, "s1")
	if got.ImgurURL != "https://i.imgur.com/x.png" || !got.Retry || got.Attempts != 1 {
		t.Errorf("Unexpected submission after retry: %+v", got)
	}

	if err := db.ClearSubmissionRetry(ctx, "s1"); err != nil {
		t.Fatalf("ClearSubmissionRetry() failed: %v", err)
	}

	got, _ = mustGetSubmission(t, db, "s1")
	if got.Retry || got.Attempts != 1 {
		t.Errorf("Expected retry cleared and attempts kept, got %+v", got)
	}
}

func TestSetSubmissionRetryForgetsMessage(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	if err := db.InsertSubmission(ctx, domain.Submission{ID: "s1"}); err != nil {
		t.Fatalf("InsertSubmission() failed: %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		if err := db.InsertMessage(ctx, domain.Message{ID: id}); err != nil {
			t.Fatalf("InsertMessage() failed: %v", err)
		}
	}

	if err := db.SetSubmissionRetry(ctx, "s1", true, "m1"); err != nil {
		t.Fatalf("SetSubmissionRetry() failed: %v", err)
	}

	if mustMessageExists(t, db, "m1") {
		t.Error("Expected forgotten message to be deleted")
	}
	if !mustMessageExists(t, db, "m2") {
		t.Error("Expected other messages to be kept")
	}

	if got, _ := mustGetSubmission(t, db, "s1"); !got.Retry {
		t.Error("Expected retry flag to be set")
	}
}

func TestSetSubmissionRetryRequiresMessageID(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	if err := db.InsertSubmission(ctx, domain.Submission{ID: "s1"}); err != nil {
		t.Fatalf("InsertSubmission() failed: %v", err)
	}

	if err := db.SetSubmissionRetry(ctx, "s1", true, ""); !errors.Is(err, ErrMessageIDRequired) {
		t.Fatalf("Expected ErrMessageIDRequired, got %v", err)
	}

	if got, _ := mustGetSubmission(t, db, "s1"); got.Retry {
		t.Error("Expected nothing to be written without a message ID")
	}
}
