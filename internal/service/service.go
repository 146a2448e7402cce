// Package service implements the point-of-sale use cases on top of a
// store.Repository. Every operation validates its request before touching
// the store and leaves atomicity to the store method it ends in.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/report"
	"caixa/backend/internal/store"
)

// ErrForbidden is returned when the actor's role does not allow the operation.
var ErrForbidden = errors.New("admin role required")

// SystemActor runs scheduled maintenance.
var SystemActor = domain.Actor{Username: "system", Role: "system"}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	reports *report.Engine
	now     func() time.Time
}

func New(repo store.Repository, reports *report.Engine) *Service {
	if reports == nil {
		reports = report.NewEngine(nil, 0)
	}
	return &Service{
		repo:    repo,
		reports: reports,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps and due-date rules.
func (s *Service) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return SystemActor.Username
}

// mayActFor reports whether the actor can operate on behalf of operator.
func mayActFor(ctx context.Context, operator string) bool {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return false
	}
	return actor.Role == domain.RoleAdmin || actor.Username == operator
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = SystemActor
	}
	log.Info().
		Str("component", "audit").
		Str("actor", actor.Username).
		Str("role", actor.Role).
		Str("action", action).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Msg("audit")
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(field string, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, store.Invalid("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func parseOptionalDate(field string, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func optionalKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func setTrimmed(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

var (
	zeroPercent    = decimal.Zero
	hundredPercent = decimal.NewFromInt(100)
)
