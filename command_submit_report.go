package session

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session/client"
)

// SubmitReportMessage carries a moderation report for a lesson.
type SubmitReportMessage struct {
	LessonID string `json:"lesson_id"`
	Reason   string `json:"reason"`
	Details  string `json:"details"`
}

func (m SubmitReportMessage) Type() string { return "lesson.report" }

// Validate will validate the payload
func (m SubmitReportMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.LessonID, validation.Required),
		validation.Field(&m.Reason, validation.Required, validation.Length(3, 120)),
		validation.Field(&m.Details, validation.Length(0, 2000)),
	)
}

// SubmitReportHandler files a report against the backend. Reports are
// fire-and-confirm: there is no optimistic local mutation to reconcile.
type SubmitReportHandler struct {
	api     InteractionAPI
	logger  Logger
	timeout time.Duration
}

// NewSubmitReportHandler creates a report handler for hosts that dispatch
// commands directly rather than through a Coordinator.
func NewSubmitReportHandler(api InteractionAPI, opts ...func(*SubmitReportHandler)) *SubmitReportHandler {
	h := &SubmitReportHandler{
		api:     api,
		logger:  defLogger{},
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *SubmitReportHandler) Execute(ctx context.Context, event SubmitReportMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during report submission",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitReportHandler) execute(ctx context.Context, event SubmitReportMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid report payload")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.api.SubmitReport(ctx, event.LessonID, client.ReportRequest{
		Reason:  event.Reason,
		Details: event.Details,
	}); err != nil {
		h.logger.Warn("report submission failed for %s: %v", event.LessonID, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not submit report")
	}

	return nil
}
