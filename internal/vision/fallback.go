package vision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackService tries providers in order, skipping those with open circuits.
// A rate-limit reply or a format the provider refuses locally moves on to the next
// provider. Any other failure may already have been billed and is returned as is.
type FallbackService struct {
	services []port.VisionService
	circuits []*circuitState
	names    []string
	now      func() time.Time
}

// NewFallbackService creates a FallbackService from an ordered list of services and their names.
func NewFallbackService(services []port.VisionService, names []string) *FallbackService {
	circuits := make([]*circuitState, len(services))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackService{
		services: services,
		circuits: circuits,
		names:    names,
		now:      time.Now,
	}
}

func (f *FallbackService) Extract(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	now := f.now()
	var earliestReset time.Time
	var unsupportedErr error

	for i, svc := range f.services {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("vision.FallbackService: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := svc.Extract(ctx, input)
		if err == nil {
			return out, nil
		}

		if errors.Is(err, domain.ErrUnsupportedImageFormat) {
			log.Printf("vision.FallbackService: %s refused %s, trying next provider", f.names[i], input.ContentType)
			unsupportedErr = err
			continue
		}

		var rlErr *RateLimitError
		if !errors.As(err, &rlErr) {
			log.Printf("vision.FallbackService: %s failed: %v", f.names[i], err)
			return nil, err
		}

		log.Printf("vision.FallbackService: %s rate limited, trying next provider", f.names[i])
		resetAt := now.Add(rlErr.RetryAfter)
		f.circuits[i].open(resetAt)
		if earliestReset.IsZero() || resetAt.Before(earliestReset) {
			earliestReset = resetAt
		}
	}

	if earliestReset.IsZero() && unsupportedErr != nil {
		return nil, unsupportedErr
	}

	retryAfter := earliestReset.Sub(f.now())
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return nil, NewRateLimitError("all", fmt.Errorf("all vision providers rate limited"), int(retryAfter.Seconds()))
}

// Ping reports success when any provider is reachable.
func (f *FallbackService) Ping(ctx context.Context) error {
	var lastErr error
	for i, svc := range f.services {
		p, ok := svc.(port.Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			lastErr = fmt.Errorf("%s: %w", f.names[i], err)
			continue
		}
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("no pingable vision provider")
	}
	return lastErr
}
