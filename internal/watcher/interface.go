// Package watcher processes recordings dropped into an inbox directory.
package watcher

import "context"

type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler is called once per new audio file.
type EventHandler func(ctx context.Context, filePath string) error
