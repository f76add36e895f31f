// Package cache holds the remote mirrors a profile snapshot is pushed to
// after each successful local save.
package cache

import (
	"context"
	"errors"
	"strings"

	"dokan/internal/session"
)

type Mirror interface {
	Name() string
	Push(ctx context.Context, st session.State) error
}

type NoopMirror struct{}

func (NoopMirror) Name() string { return "noop" }

func (NoopMirror) Push(_ context.Context, _ session.State) error {
	return nil
}

// Fanout pushes to every mirror in order. A push fails when any mirror
// fails; the others are still attempted.
type Fanout []Mirror

func (f Fanout) Name() string {
	names := make([]string, 0, len(f))
	for _, m := range f {
		names = append(names, m.Name())
	}
	return strings.Join(names, "+")
}

func (f Fanout) Push(ctx context.Context, st session.State) error {
	var errs []error
	for _, m := range f {
		if err := m.Push(ctx, st); err != nil {
			errs = append(errs, errors.New(m.Name()+": "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Combine returns the single mirror that pushes to all of ms, or the noop
// mirror when ms is empty.
func Combine(ms ...Mirror) Mirror {
	switch len(ms) {
	case 0:
		return NoopMirror{}
	case 1:
		return ms[0]
	default:
		return Fanout(ms)
	}
}
