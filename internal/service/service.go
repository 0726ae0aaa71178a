// Package service implements the rentwise business operations on top of the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/store"
	"github.com/rentwise/rentwise-server/internal/validation"
)

// DefaultStorageTimeout bounds a single storage round trip.
const DefaultStorageTimeout = 5 * time.Second

var (
	tracer   = otel.Tracer("github.com/rentwise/rentwise-server/internal/service")
	validate = validation.New()
)

// Warning reports a best-effort step that failed after the authoritative
// change committed. Warnings never turn a success into a failure.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Warning steps.
const (
	StepConversation       = "conversation"
	StepNotification       = "notification"
	StepPropertyAssignment = "property_assignment"
)

// warnings collects Warning values for one operation.
type warnings []Warning

func (w *warnings) add(step, msg string) {
	*w = append(*w, Warning{Step: step, Message: msg})
}

// list returns the collected warnings, never nil, so responses always carry the field.
func (w warnings) list() []Warning {
	if w == nil {
		return []Warning{}
	}
	return w
}

// storageCall runs fn under a bounded timeout derived from ctx.
func storageCall[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// storageExec is storageCall for operations with no result.
func storageExec(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// translateStoreError maps persistence failures onto domain errors.
// Transient failures become STORAGE_UNAVAILABLE; they are never reported as
// a semantic outcome such as not found.
func translateStoreError(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return domainerrors.StorageUnavailable(err)
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(notFoundMsg)
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("storage: %w", err)
}

// normalizeText trims and NFC-normalizes user supplied text so equal strings
// compare equal and length limits count what the user sees.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// endSpan records err on span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
