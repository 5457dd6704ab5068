package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

// Committer submits a reschedule request.
type Committer interface {
	Commit(ctx context.Context, payload domain.SchedulePayload) (bool, error)
}

// RescheduleCommitter posts the chosen pair to the appointment form and
// classifies the response. It does not retry.
type RescheduleCommitter struct {
	session    SessionProvider
	routes     Routes
	classifier ResponseClassifier
	notifier   Notifier
	attempts   domain.RescheduleAttemptRepository
	exporter   BookingExporter
	metrics    observability.Metrics
	caseID     string
	logger     *slog.Logger
}

// NewRescheduleCommitter creates a committer for one case.
func NewRescheduleCommitter(
	session SessionProvider,
	routes Routes,
	classifier ResponseClassifier,
	notifier Notifier,
	caseID string,
	logger *slog.Logger,
) *RescheduleCommitter {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &RescheduleCommitter{
		session:    session,
		routes:     routes,
		classifier: classifier,
		notifier:   notifier,
		metrics:    observability.NoopMetrics{},
		caseID:     caseID,
		logger:     logger,
	}
}

// WithAttemptRepository records every commit outcome.
func (c *RescheduleCommitter) WithAttemptRepository(repo domain.RescheduleAttemptRepository) *RescheduleCommitter {
	c.attempts = repo
	return c
}

// WithExporter publishes successful bookings.
func (c *RescheduleCommitter) WithExporter(exporter BookingExporter) *RescheduleCommitter {
	c.exporter = exporter
	return c
}

// WithMetrics sets the metrics sink.
func (c *RescheduleCommitter) WithMetrics(metrics observability.Metrics) *RescheduleCommitter {
	if metrics != nil {
		c.metrics = metrics
	}
	return c
}

// Commit submits payload and returns true only when the response contains
// the success marker. It notifies exactly once before returning.
// A transport failure yields false and an error wrapping domain.ErrCommitAmbiguous.
func (c *RescheduleCommitter) Commit(ctx context.Context, payload domain.SchedulePayload) (bool, error) {
	primary := payload.Primary()
	c.logger.InfoContext(ctx, "submitting reschedule", "payload", payload.String())

	body, err := c.session.SubmitForm(ctx, c.routes.AppointmentURL(), FormFields(payload))
	if err != nil {
		c.finish(ctx, payload, false, err.Error())
		return false, fmt.Errorf("%w: %v", domain.ErrCommitAmbiguous, err)
	}

	if c.classifier.IsCommitSuccess(body) {
		c.finish(ctx, payload, true, "")
		if c.exporter != nil {
			if err := c.exporter.ExportBooking(ctx, payload); err != nil {
				c.logger.WarnContext(ctx, "booking export failed", "error", err)
			}
		}
		return true, nil
	}

	c.logger.WarnContext(ctx, "reschedule response without success marker",
		"date", domain.FormatDate(primary.Date()),
		"time", primary.Time(),
		"body_bytes", len(body),
	)
	c.finish(ctx, payload, false, "success marker not found in response")
	return false, nil
}

func (c *RescheduleCommitter) finish(ctx context.Context, payload domain.SchedulePayload, success bool, reason string) {
	primary := payload.Primary()
	result := "failed"
	msg := fmt.Sprintf("Reschedule Failed. %s %s", domain.FormatDate(primary.Date()), primary.Time())
	if success {
		result = "success"
		msg = fmt.Sprintf("Rescheduled Successfully! %s %s", domain.FormatDate(primary.Date()), primary.Time())
	}
	c.metrics.Counter(observability.MetricCommits, 1, observability.T("result", result))

	if c.notifier != nil {
		c.notifier.Notify(ctx, msg)
	}

	if c.attempts != nil {
		attempt := domain.NewRescheduleAttempt(c.caseID, payload, success, reason)
		if err := c.attempts.Create(ctx, attempt); err != nil {
			c.logger.ErrorContext(ctx, "failed to record reschedule attempt", "error", err)
		}
	}
}

// FormFields encodes the facility/date/time fields of both resources.
func FormFields(payload domain.SchedulePayload) url.Values {
	primary := payload.Primary()
	fields := url.Values{}
	fields.Set("appointments[consulate_appointment][facility_id]", primary.FacilityID().String())
	fields.Set("appointments[consulate_appointment][date]", domain.FormatDate(primary.Date()))
	fields.Set("appointments[consulate_appointment][time]", primary.Time().String())
	if secondary, ok := payload.Secondary(); ok {
		fields.Set("appointments[asc_appointment][facility_id]", secondary.FacilityID().String())
		fields.Set("appointments[asc_appointment][date]", domain.FormatDate(secondary.Date()))
		fields.Set("appointments[asc_appointment][time]", secondary.Time().String())
	}
	return fields
}
