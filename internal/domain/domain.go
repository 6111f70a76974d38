package domain

import "time"

type FeedItem struct {
	ID       string
	Fullname string
	// Author is empty when the account was deleted.
	Author    string
	Title     string
	URL       string
	Score     int
	Subreddit string
}

type TriggerEvent struct {
	ID           string
	Fullname     string
	Author       string
	Subject      string
	Body         string
	IsComment    bool
	SubmissionID string
}

type Submission struct {
	ID        string
	Author    string
	Title     string
	URL       string
	ImgurURL  string
	Retry     bool
	Attempts  int
	CreatedAt time.Time
}

type Message struct {
	ID      string
	Author  string
	Subject string
	Body    string
}

type Comment struct {
	ID       string
	Fullname string
	Score    int
}

type UploadConfig struct {
	Name        string
	Title       string
	Description string
}
