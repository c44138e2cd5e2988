// Package ratelimit throttles API traffic and failed logins per client
// address. Both limiters use httprate's sliding window estimate over a
// counter that supports clearing one address.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

// Counter is an in-memory httprate.LimitCounter keyed by client address.
// Unlike the stock counter it can forget a single key.
type Counter struct {
	mu           sync.Mutex
	window       time.Duration
	latestWindow time.Time
	latest       map[string]int
	previous     map[string]int
}

var _ httprate.LimitCounter = (*Counter)(nil)

func NewCounter() *Counter {
	return &Counter{
		latest:   make(map[string]int),
		previous: make(map[string]int),
	}
}

func (c *Counter) Config(requestLimit int, windowLength time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = windowLength
}

func (c *Counter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *Counter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(currentWindow)
	c.latest[key] += amount
	return nil
}

func (c *Counter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.latestWindow.Equal(currentWindow):
		return c.latest[key], c.previous[key], nil
	case c.latestWindow.Equal(previousWindow):
		return 0, c.latest[key], nil
	default:
		return 0, 0, nil
	}
}

// Reset forgets every count recorded for key.
func (c *Counter) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.latest, key)
	delete(c.previous, key)
}

// Acquire counts one attempt for key when the sliding window estimate at
// now is below limit. The check and the increment happen under one lock, so
// concurrent callers cannot all pass on the same reading. The returned
// window identifies the bucket for Release.
func (c *Counter) Acquire(key string, limit int, now time.Time) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(now.Truncate(c.window))

	elapsed := now.Sub(c.latestWindow)
	if elapsed < 0 {
		elapsed = 0
	}
	rate := float64(c.previous[key])*float64(c.window-elapsed)/float64(c.window) + float64(c.latest[key])
	if int(math.Round(rate)) >= limit {
		return time.Time{}, false
	}
	c.latest[key]++
	return c.latestWindow, true
}

// Release gives back one attempt acquired in window. Counts already cleared
// by Reset or rotated out are left alone.
func (c *Counter) Release(key string, window time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var bucket map[string]int
	switch {
	case c.latestWindow.Equal(window):
		bucket = c.latest
	case c.latestWindow.Equal(window.Add(c.window)):
		bucket = c.previous
	default:
		return
	}
	if bucket[key] > 0 {
		bucket[key]--
	}
}

// advance rotates the buckets so that latest covers currentWindow. A window
// older than the latest one is counted in the latest bucket.
func (c *Counter) advance(currentWindow time.Time) {
	if !currentWindow.After(c.latestWindow) {
		return
	}
	if c.latestWindow.Equal(currentWindow.Add(-c.window)) {
		c.previous, c.latest = c.latest, c.previous
		clear(c.latest)
	} else {
		clear(c.latest)
		clear(c.previous)
	}
	c.latestWindow = currentWindow
}
