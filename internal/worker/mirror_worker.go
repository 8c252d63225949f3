// Package worker consumes expense events and mirrors them into the audit
// spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"google.golang.org/api/googleapi"

	"spendly/internal/amqp"
	applog "spendly/internal/log"
	"spendly/internal/sheets"
)

// EventSource delivers expense events to a handler until ctx ends.
type EventSource interface {
	ConsumeWithReconnect(ctx context.Context, handler amqp.Handler) error
}

var _ EventSource = (*amqp.Client)(nil)

// MirrorWorker appends one audit row per expense event. Without a sheet it
// only logs the events it receives.
type MirrorWorker struct {
	sheet  sheets.AuditAppender
	logger *applog.Logger

	mirrored int64
	dropped  int64
	failed   int64
}

func NewMirrorWorker(sheet sheets.AuditAppender, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &MirrorWorker{sheet: sheet, logger: logger.WithComponent(applog.ComponentWorker)}
}

// Run consumes from src until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, src EventSource) error {
	w.logger.InfoContext(ctx, "Mirror worker started", "sheet_enabled", w.sheet != nil)
	err := src.ConsumeWithReconnect(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleEvent is an amqp.Handler. Transient sheet failures are returned so
// the delivery is requeued; rejected rows are logged and dropped.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if w.sheet == nil {
		w.logger.InfoContext(ctx, "Expense event received",
			"event", string(ev.Type),
			"expense_id", ev.ExpenseID,
			applog.FieldUserID, ev.UserID)
		atomic.AddInt64(&w.mirrored, 1)
		return nil
	}

	ref, err := w.sheet.AppendEvent(ctx, ev)
	if err != nil {
		if isPermanent(err) {
			atomic.AddInt64(&w.dropped, 1)
			w.logger.ErrorContext(ctx, "Audit row rejected, dropping event",
				"event", string(ev.Type),
				"expense_id", ev.ExpenseID,
				applog.FieldError, err.Error())
			return nil
		}
		atomic.AddInt64(&w.failed, 1)
		return fmt.Errorf("append audit row: %w", err)
	}

	atomic.AddInt64(&w.mirrored, 1)
	w.logger.InfoContext(ctx, "Expense event mirrored",
		applog.FieldOperation, applog.OpMirror,
		"event", string(ev.Type),
		"expense_id", ev.ExpenseID,
		"sheets_ref", ref)
	return nil
}

// isPermanent reports client errors from the Sheets API other than throttling.
func isPermanent(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 &&
		apiErr.Code != http.StatusTooManyRequests && apiErr.Code != http.StatusRequestTimeout
}

type Stats struct {
	Mirrored int64
	Dropped  int64
	Failed   int64
}

func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Mirrored: atomic.LoadInt64(&w.mirrored),
		Dropped:  atomic.LoadInt64(&w.dropped),
		Failed:   atomic.LoadInt64(&w.failed),
	}
}
