package core

import (
	"context"
	"errors"
	"slices"
)

// ErrReentrancyViolation signals an attempt to re-enter a scheduler loop or a
// per-user critical section that the current call chain already holds.
// Waiting would deadlock, so callers fail loudly instead.
var ErrReentrancyViolation = errors.New("reentrancy violation")

type heldUsersKey struct{}

// WithHeldUser marks userID's session lock as held by the call chain of ctx.
func WithHeldUser(ctx context.Context, userID string) context.Context {
	held, _ := ctx.Value(heldUsersKey{}).([]string)
	next := make([]string, 0, len(held)+1)
	next = append(next, held...)
	next = append(next, userID)
	return context.WithValue(ctx, heldUsersKey{}, next)
}

// HoldsUser reports whether an enclosing call in ctx's chain holds userID's lock.
func HoldsUser(ctx context.Context, userID string) bool {
	held, _ := ctx.Value(heldUsersKey{}).([]string)
	return slices.Contains(held, userID)
}
