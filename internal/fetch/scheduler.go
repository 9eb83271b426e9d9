// Package fetch implements round-based retrieval of paginated resources.
//
// A complete resource is pulled in rounds: each round issues up to MaxParallel
// page requests concurrently, waits for every one of them (success or
// failure), and only then inspects the responses. Any failed response
// discards the whole round: the offset is rewound by the round's span and the
// round is retried with exponential backoff, up to MaxAttempts per round.
//
// Responses are consumed in request-issuance order regardless of completion
// order. Downstream positional merging (audio features into the track list)
// depends on this: each goroutine writes into the result slot matching its
// issuance index.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pomokey/pomokey/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultMaxParallel = 16
	defaultMaxAttempts = 5
	defaultBackoff     = 500 * time.Millisecond
)

// Page is one page of a paginated resource.
type Page[T any] struct {
	Items       []T
	Total       int    // resource-reported count, re-read from every response
	ETag        string // revalidation token from the response, may be empty
	NotModified bool   // server reported the resource unchanged (304)
}

// PageFunc fetches a single page starting at offset, carrying etag as a
// conditional-request header.
type PageFunc[T any] func(ctx context.Context, offset, limit int, etag string) (Page[T], error)

// Result is the outcome of fetching a complete resource.
type Result[T any] struct {
	Items       []T
	ETag        string // first revalidation token observed, or the prior one
	NotModified bool   // whole resource is current; reuse the cached item set
}

// Scheduler coordinates concurrent paginated fetches.
type Scheduler struct {
	MaxParallel int           // concurrent requests per round
	MaxAttempts int           // retries per round before giving up
	Backoff     time.Duration // base backoff, doubled per failed attempt
	Limiter     *rate.Limiter // optional request pacing
	Logger      *log.Logger
	Notify      func(text string) // optional human-readable progress sink
}

// Options describes the resource being fetched.
type Options struct {
	Label        string // resource name for progress messages
	PageSize     int
	InitialTotal int    // known item count, or 0 to discover from responses
	ETag         string // cached revalidation token, may be empty
}

func (s *Scheduler) maxParallel() int {
	if s.MaxParallel <= 0 {
		return defaultMaxParallel
	}
	return s.MaxParallel
}

func (s *Scheduler) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return s.MaxAttempts
}

func (s *Scheduler) backoff() time.Duration {
	if s.Backoff <= 0 {
		return defaultBackoff
	}
	return s.Backoff
}

func (s *Scheduler) notify(text string) {
	if s.Notify != nil {
		s.Notify(text)
	}
}

// Pages retrieves the entire resource described by opts.
//
// Returns NotModified when any response in a round reports the resource
// unchanged; the caller then reuses its cached item set in full. The returned
// ETag is the prior token if one was supplied, otherwise the first token
// observed in the responses.
func Pages[T any](ctx context.Context, s *Scheduler, opts Options, fn PageFunc[T]) (Result[T], error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		return Result[T]{}, fmt.Errorf("%w: page size must be positive", shared.ErrInvalidArgument)
	}

	total := opts.InitialTotal
	if total <= 0 {
		// Unknown until the first response; assume one page exists.
		total = pageSize
	}

	var items []T
	etag := opts.ETag
	newETag := opts.ETag
	offset := 0
	attempts := 0

	for offset < total {
		remaining := total - offset
		parallel := (remaining + pageSize - 1) / pageSize
		if parallel > s.maxParallel() {
			parallel = s.maxParallel()
		}

		roundStart := offset
		pages := make([]Page[T], parallel)
		errs := make([]error, parallel)

		var wg sync.WaitGroup
		for i := 0; i < parallel; i++ {
			if s.Limiter != nil {
				if err := s.Limiter.Wait(ctx); err != nil {
					wg.Wait()
					return Result[T]{}, err
				}
			}

			s.notify(fmt.Sprintf("Fetching %s %d-%d of %d...", opts.Label, offset, offset+pageSize, total))

			wg.Add(1)
			go func(slot, pageOffset int) {
				defer wg.Done()
				pages[slot], errs[slot] = fn(ctx, pageOffset, pageSize, etag)
			}(i, offset)

			offset += pageSize
		}

		// Join barrier: every request in the round completes before any
		// response is consumed.
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return Result[T]{}, err
		}

		failed := false
		for _, err := range errs {
			if err != nil {
				s.notify(fmt.Sprintf("Error: %v, retrying...", err))
				if s.Logger != nil {
					s.Logger.Warn("page request failed", "resource", opts.Label, "error", err)
				}
				failed = true
			}
		}

		if failed {
			// Discard the whole round and retry it from its starting offset.
			offset = roundStart
			attempts++
			if attempts >= s.maxAttempts() {
				return Result[T]{}, fmt.Errorf("%w: %s round at offset %d failed %d times", shared.ErrFetchExhausted, opts.Label, roundStart, attempts)
			}
			if err := sleepContext(ctx, s.backoff()<<(attempts-1)); err != nil {
				return Result[T]{}, err
			}
			continue
		}
		attempts = 0

		// Consume in issuance order so item positions line up with offsets.
		for _, page := range pages {
			if page.NotModified {
				s.notify(fmt.Sprintf("Using cached %s", opts.Label))
				return Result[T]{ETag: etag, NotModified: true}, nil
			}
			if newETag == "" {
				newETag = page.ETag
			}
			total = page.Total
			items = append(items, page.Items...)
		}
	}

	return Result[T]{Items: items, ETag: newETag}, nil
}

// sleepContext waits for the given delay or until the context is canceled.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
