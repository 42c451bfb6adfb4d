package coordinator

import (
	"context"
	"time"

	"github.com/mcdev12/watchroom/go/clients/media_info_client"
)

// MetadataFetcher looks up the aspect ratio and live status of a video.
type MetadataFetcher interface {
	GetVideo(ctx context.Context, id string) (*media_info_client.VideoInfo, error)
}

type loadResult struct {
	generation uint64
	id         string
	timestamp  float64
	info       *media_info_client.VideoInfo
	err        error
}

// loader runs at most one meaningful metadata fetch at a time. Starting a
// new fetch cancels the previous one and bumps the generation, so a late
// completion from a superseded fetch is recognised and dropped.
type loader struct {
	fetcher MetadataFetcher
	timeout time.Duration
	base    context.Context
	results chan loadResult

	generation uint64
	cancel     context.CancelFunc
}

func newLoader(base context.Context, fetcher MetadataFetcher, timeout time.Duration) *loader {
	return &loader{
		fetcher: fetcher,
		timeout: timeout,
		base:    base,
		results: make(chan loadResult, 8),
	}
}

// start cancels any in-flight fetch and begins fetching id.
func (l *loader) start(id string, timestamp float64) uint64 {
	l.abort()
	gen := l.generation

	ctx, cancel := context.WithTimeout(l.base, l.timeout)
	l.cancel = cancel

	go func() {
		defer cancel()
		res := loadResult{generation: gen, id: id, timestamp: timestamp}
		if l.fetcher != nil {
			res.info, res.err = l.fetcher.GetVideo(ctx, id)
		}
		select {
		case l.results <- res:
		case <-l.base.Done():
		}
	}()

	return gen
}

// abort invalidates whatever is in flight.
func (l *loader) abort() {
	l.generation++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// pending reports whether a fetch for the current generation may still complete.
func (l *loader) pending() bool {
	return l.cancel != nil
}

func (l *loader) current(res loadResult) bool {
	return res.generation == l.generation
}

// completed marks the current fetch as finished.
func (l *loader) completed() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
