// Package pagewalk drains cursor-based list APIs page by page so callers
// never re-derive continuation-token plumbing.
package pagewalk

import (
	"context"
	"errors"
)

// ErrStop ends an Each walk early without surfacing an error.
var ErrStop = errors.New("pagewalk: stop")

// FetchFunc fetches one page of a remote listing. An empty token requests
// the first page; a non-empty next token means more pages remain.
type FetchFunc[T any] func(ctx context.Context, token string) (items []T, next string, err error)

// Walker is a finite, non-restartable walk over one remote listing.
// It mirrors the AWS SDK paginator shape: HasMorePages then NextPage.
type Walker[T any] struct {
	fetch FetchFunc[T]
	token string
	done  bool
	pages int
}

// New builds a walker bound to a single listing.
func New[T any](fetch FetchFunc[T]) *Walker[T] {
	return &Walker[T]{fetch: fetch}
}

// HasMorePages reports whether NextPage can yield another page.
func (w *Walker[T]) HasMorePages() bool {
	return !w.done
}

// NextPage issues the next request. On error the walk terminates; the
// error is surfaced to the caller, never retried here.
func (w *Walker[T]) NextPage(ctx context.Context) ([]T, error) {
	if w.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		w.done = true
		return nil, err
	}
	items, next, err := w.fetch(ctx, w.token)
	if err != nil {
		w.done = true
		return nil, err
	}
	w.pages++
	w.token = next
	if next == "" {
		w.done = true
	}
	return items, nil
}

// Pages reports how many requests have been issued so far.
func (w *Walker[T]) Pages() int {
	return w.pages
}

// Each drains the walk, calling fn once per item in listing order.
func (w *Walker[T]) Each(ctx context.Context, fn func(T) error) error {
	for w.HasMorePages() {
		items, err := w.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// Collect drains the walk into a single slice.
func (w *Walker[T]) Collect(ctx context.Context) ([]T, error) {
	var all []T
	err := w.Each(ctx, func(item T) error {
		all = append(all, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Count drains the walk and returns the number of items seen.
func (w *Walker[T]) Count(ctx context.Context) (int, error) {
	n := 0
	err := w.Each(ctx, func(T) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
