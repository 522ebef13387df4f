package model

import "context"

// Publisher sends a workflow report somewhere.
type Publisher interface {
	Publish(ctx context.Context, report Report) error
}

type PublishCloser interface {
	Publisher
	Close() error
}
