// Package middleware contains Telegram bot middlewares for request processing.
// They run around every incoming update before it reaches a handler.
package middleware

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// Used to pass data through the request context.
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// TelegramIDContextKey is the context key for the Telegram user ID.
	TelegramIDContextKey contextKey = "telegram_id"

	// RequestIDContextKey is the context key for request tracing.
	RequestIDContextKey contextKey = "request_id"
)

// ContextWithTelegramID stores the sender's Telegram ID in the context.
func ContextWithTelegramID(ctx context.Context, telegramID int64) context.Context {
	return context.WithValue(ctx, TelegramIDContextKey, telegramID)
}

// TelegramIDFromContext returns the sender's Telegram ID, or 0.
func TelegramIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(TelegramIDContextKey).(int64)
	return id
}

// ContextWithRequestID stores an update-scoped request ID in the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN GUARD
// Restricts operator commands (forcing the daily cycle) to a fixed set of
// Telegram user IDs. Everyone else gets a polite refusal.
// ══════════════════════════════════════════════════════════════════════════════

// AdminGuard checks whether a user may run operator commands.
type AdminGuard struct {
	admins map[int64]struct{}
}

// NewAdminGuard creates a guard for the given Telegram user IDs.
// An empty list means no one is an admin.
func NewAdminGuard(adminIDs []int64) *AdminGuard {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &AdminGuard{admins: admins}
}

// IsAdmin reports whether telegramID is an admin.
func (g *AdminGuard) IsAdmin(telegramID int64) bool {
	if g == nil {
		return false
	}
	_, ok := g.admins[telegramID]
	return ok
}

// Authorize returns a user-facing refusal when telegramID is not an admin.
func (g *AdminGuard) Authorize(telegramID int64, command string) (string, bool) {
	if g.IsAdmin(telegramID) {
		return "", true
	}
	return fmt.Sprintf("🔒 El comando /%s es solo para administradores.", command), false
}
