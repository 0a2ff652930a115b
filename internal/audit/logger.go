// Package audit forwards login outcomes to the OTLP audit endpoint.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"
)

const DefaultSource = "api-client"

type Logger struct {
	audit  *otlpaudit.AuditLogger
	source string
}

func NewLogger(cfg *commoncfg.Audit, source string) (*Logger, error) {
	auditLogger, err := otlpaudit.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	if source == "" {
		source = DefaultSource
	}

	return &Logger{
		audit:  auditLogger,
		source: source,
	}, nil
}

func (l *Logger) LoginSucceeded(ctx context.Context, clientID string) {
	metadata, err := l.metadata(clientID)
	if err != nil {
		slogctx.Error(ctx, "Creating audit metadata", "error", err)
		return
	}

	event, err := otlpaudit.NewUserLoginSuccessEvent(metadata, clientID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.MFATYPE_NONE, otlpaudit.USERTYPE_BUSINESS, clientID)
	if err != nil {
		slogctx.Error(ctx, "Creating audit log", "error", err)
		return
	}

	if err := l.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login success", "error", err)
	}
}

// LoginFailed logs errors encountered while creating or sending the event
// without propagating them.
func (l *Logger) LoginFailed(ctx context.Context, clientID, reason string) {
	metadata, err := l.metadata(clientID)
	if err != nil {
		slogctx.Error(ctx, "Creating audit metadata", "error", err)
		return
	}

	event, err := otlpaudit.NewUserLoginFailureEvent(metadata, clientID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.FailReason(reason), clientID)
	if err != nil {
		slogctx.Error(ctx, "Creating audit log", "error", err)
		return
	}

	if err := l.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login failure", "error", err)
	}
}

func (l *Logger) metadata(clientID string) (otlpaudit.EventMetadata, error) {
	return otlpaudit.NewEventMetadata(l.source, clientID, uuid.NewString())
}
