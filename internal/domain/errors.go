package domain

import "errors"

var (
	// ErrRateLimited is reported by the image host when the upload quota is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrUploadRejected is reported by the image host for any other client-side failure.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrPlatform is reported by the feed source when the platform API refuses an action.
	ErrPlatform = errors.New("platform API error")
	// ErrUndecodable is reported by the image source when a body is not a supported image.
	ErrUndecodable = errors.New("undecodable image")
)
