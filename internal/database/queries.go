package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"titletoimagebot/internal/domain"
)

var ErrMessageIDRequired = errors.New("message ID is required to forget a message")

func (d *Database) MessageExists(ctx context.Context, messageID string) (bool, error) {
	query := "select exists(select 1 from messages where id = ? limit 1)"

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, messageID).Scan(&exists); err != nil {
		return false, fmt.Errorf("scan row: %w", err)
	}

	return exists, nil
}

func (d *Database) InsertMessage(ctx context.Context, message domain.Message) error {
	if strings.TrimSpace(message.ID) == "" {
		return errors.New("message ID is empty")
	}

	query := "insert into messages (id, author, subject, body) values (?, ?, ?, ?)"

	_, err := d.db.ExecContext(ctx, query, message.ID, message.Author, message.Subject, message.Body)

	return err
}

// GetSubmission reports false when no submission with the given ID exists.
func (d *Database) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, bool, error) {
	query := `select id, author, title, url, imgur_url, retry, attempts, timestamp
	from submissions
	where id = ?`

	var (
		s        domain.Submission
		author   sql.NullString
		title    sql.NullString
		url      sql.NullString
		imgurURL sql.NullString
		retry    sql.NullInt64
	)

	err := d.db.QueryRowContext(ctx, query, submissionID).Scan(
		&s.ID,
		&author,
		&title,
		&url,
		&imgurURL,
		&retry,
		&s.Attempts,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, false, nil
	}
	if err != nil {
		return domain.Submission{}, false, fmt.Errorf("scan row: %w", err)
	}

	s.Author = author.String
	s.Title = title.String
	s.URL = url.String
	s.ImgurURL = imgurURL.String
	s.Retry = retry.Int64 != 0

	return s, true, nil
}

func (d *Database) InsertSubmission(ctx context.Context, submission domain.Submission) error {
	if strings.TrimSpace(submission.ID) == "" {
		return errors.New("submission ID is empty")
	}

	query := "insert into submissions (id, author, title, url) values (?, ?, ?, ?)"

	_, err := d.db.ExecContext(ctx, query,
		submission.ID,
		submission.Author,
		submission.Title,
		submission.URL)

	return err
}

// SetSubmissionRetry flags the submission for another attempt. With
// forgetMessage the triggering message is deleted in the same transaction so
// that it is picked up again from the inbox.
func (d *Database) SetSubmissionRetry(
	ctx context.Context,
	submissionID string,
	forgetMessage bool,
	messageID string,
) (err error) {
	if forgetMessage && strings.TrimSpace(messageID) == "" {
		return ErrMessageIDRequired
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}

		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			d.log.ErrorContext(ctx, "Failed to roll back transaction",
				"error", rollbackErr,
				"submissionID", submissionID,
				"operation", "SetSubmissionRetry")
		}
	}()

	query := "update submissions set retry = 1, attempts = attempts + 1 where id = ?"
	if _, err = tx.ExecContext(ctx, query, submissionID); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}

	if forgetMessage {
		if _, err = tx.ExecContext(ctx, "delete from messages where id = ?", messageID); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (d *Database) ClearSubmissionRetry(ctx context.Context, submissionID string) error {
	query := "update submissions set retry = 0 where id = ?"

	_, err := d.db.ExecContext(ctx, query, submissionID)

	return err
}

func (d *Database) SetSubmissionImgurURL(ctx context.Context, submissionID string, imgurURL string) error {
	imgurURL = strings.TrimSpace(imgurURL)
	if imgurURL == "" {
		return errors.New("imgur URL is empty")
	}

	query := "update submissions set imgur_url = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, imgurURL, submissionID)

	return err
}
