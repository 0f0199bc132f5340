package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/employee-portal/internal/events"
)

// AuditService records employee lifecycle events in the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger.Named("audit")}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventEmployeeRegistered, a.record)
	a.dispatcher.Subscribe(events.EventEmployeeUpdated, a.record)
	a.dispatcher.Subscribe(events.EventEmployeeDeleted, a.record)
}

func (a *AuditService) record(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("employee_id", event.EmployeeID),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", *event.ActorID))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	a.logger.Info("employee event", fields...)
	return nil
}
