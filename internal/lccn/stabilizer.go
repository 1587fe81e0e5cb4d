package lccn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
)

// ErrDeadlineExceeded is returned when a search page neither rendered results
// nor confirmed an empty search before the search timeout. It aborts the run.
var ErrDeadlineExceeded = errors.New("search page did not settle before the deadline")

type pageState int

const (
	stateNavigating pageState = iota
	stateReady
	stateTransientError
	stateConfirmedEmpty
)

func (s pageState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateTransientError:
		return "site-error"
	case stateConfirmedEmpty:
		return "no-results"
	default:
		return "loading"
	}
}

// Stabilizer loads a search page and waits until it shows results, shows a
// confirmed empty search, or the deadline passes. Site errors trigger a fresh
// navigation.
type Stabilizer struct {
	browser   browser.Browser
	selectors catalog.Selectors

	pageLoadTimeout time.Duration
	timeout         time.Duration
	pollInterval    time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStabilizer creates a stabilizer. timeout bounds a whole attempt,
// including every re-navigation; pageLoadTimeout bounds each navigation.
func NewStabilizer(b browser.Browser, selectors catalog.Selectors, pageLoadTimeout, timeout, pollInterval time.Duration) *Stabilizer {
	return &Stabilizer{
		browser:         b,
		selectors:       selectors,
		pageLoadTimeout: pageLoadTimeout,
		timeout:         timeout,
		pollInterval:    pollInterval,
		now:             time.Now,
		sleep:           sleepContext,
	}
}

// Load navigates to url and returns the result items once the page settles.
// A confirmed empty search returns an empty slice.
func (s *Stabilizer) Load(ctx context.Context, url string) ([]browser.Element, error) {
	attemptStart := s.now()
	deadline := attemptStart.Add(s.timeout)

	if err := navigate(ctx, s.browser, url, s.pageLoadTimeout); err != nil {
		return nil, err
	}

	retries := 0
	for {
		state, items, err := s.observe()
		if err != nil {
			return nil, fmt.Errorf("failed to read search page %s: %w", url, err)
		}

		switch state {
		case stateReady:
			slog.Debug("Search page ready", "url", url, "results", len(items), "retries", retries)
			return items, nil
		case stateConfirmedEmpty:
			slog.Debug("Search page has no results", "url", url, "retries", retries)
			return []browser.Element{}, nil
		case stateTransientError:
			retries++
			slog.Warn("Search page reported a site error, reloading", "url", url, "retry", retries)
			if err := navigate(ctx, s.browser, url, s.pageLoadTimeout); err != nil {
				return nil, err
			}
		}

		if now := s.now(); now.After(deadline) {
			elapsed := now.Sub(attemptStart).Round(time.Millisecond)
			return nil, fmt.Errorf("%w: %s after %s and %d retries", ErrDeadlineExceeded, url, elapsed, retries)
		}

		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return nil, err
		}
	}
}

// observe classifies the current page. Results take priority over the error
// and empty markers.
func (s *Stabilizer) observe() (pageState, []browser.Element, error) {
	container, ok, err := s.browser.LocateOne(s.selectors.Results)
	if err != nil {
		return stateNavigating, nil, err
	}
	if ok {
		list, ok, err := container.LocateOne(s.selectors.ResultList)
		if err != nil {
			return stateNavigating, nil, err
		}
		if ok {
			items, err := list.LocateAll(s.selectors.ResultItem)
			if err != nil {
				return stateNavigating, nil, err
			}
			if len(items) > 0 {
				return stateReady, items, nil
			}
		}
	}

	if _, ok, err := s.browser.LocateOne(s.selectors.SiteError); err != nil {
		return stateNavigating, nil, err
	} else if ok {
		return stateTransientError, nil, nil
	}

	if _, ok, err := s.browser.LocateOne(s.selectors.NoResults); err != nil {
		return stateNavigating, nil, err
	} else if ok {
		return stateConfirmedEmpty, nil, nil
	}

	return stateNavigating, nil, nil
}

// navigate loads url with the page load bounded by timeout.
func navigate(ctx context.Context, b browser.Browser, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := b.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
