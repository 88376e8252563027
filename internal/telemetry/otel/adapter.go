package otel

import (
	"context"
	"encoding/json"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/kennarddh/asset-management-sub000/internal/events"
)

// EventLogger re-emits lifecycle events as OTel log records.
type EventLogger struct {
	logger otellog.Logger
}

// NewEventLogger returns an EventLogger on provider, or nil when provider is nil.
func NewEventLogger(provider *sdklog.LoggerProvider) *EventLogger {
	if provider == nil {
		return nil
	}
	return &EventLogger{logger: provider.Logger("asset-lending.events")}
}

// Handle converts ev to a log record whose body is the event JSON. It has the events.Handler
// signature so the worker can plug it into a consumer.
func (e *EventLogger) Handle(ctx context.Context, ev events.Event) error {
	if e == nil {
		return nil
	}
	e.logger.Emit(ctx, toRecord(ev))
	return nil
}

func toRecord(ev events.Event) otellog.Record {
	var rec otellog.Record
	rec.SetTimestamp(ev.OccurredAt)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(ev.Type)
	if body, err := json.Marshal(ev); err == nil {
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(
		otellog.String("event_id", ev.ID),
		otellog.String("event_type", ev.Type),
		otellog.String("subject", ev.Subject),
	)
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	for k, v := range ev.Attributes {
		rec.AddAttributes(otellog.String("attr."+k, v))
	}
	return rec
}
