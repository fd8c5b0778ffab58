package observability

import (
	"github.com/pborman/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Audit is an append-only JSON record of automated moderation decisions.
type Audit struct {
	logger *zap.Logger
}

// NewAudit writes to path, or to stdout when path is empty.
func NewAudit(path string) (*Audit, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	if path != "" {
		cfg.OutputPaths = []string{path}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Audit{logger: logger.Named("audit")}, nil
}

func NewNopAudit() *Audit {
	return &Audit{logger: zap.NewNop()}
}

// NewAuditWithLogger wraps an existing zap logger.
func NewAuditWithLogger(logger *zap.Logger) *Audit {
	return &Audit{logger: logger}
}

type AuditEntry struct {
	Event     string
	ChatID    int64
	UserID    int64
	MessageID int
	Action    string
	Category  string
	Reason    string
	WarnCount int
}

// Record writes entry and returns the generated decision id.
func (a *Audit) Record(entry AuditEntry) string {
	id := uuid.New()
	if a == nil || a.logger == nil {
		return id
	}
	a.logger.Info(entry.Event,
		zap.String("decision_id", id),
		zap.Int64("chat_id", entry.ChatID),
		zap.Int64("user_id", entry.UserID),
		zap.Int("message_id", entry.MessageID),
		zap.String("action", entry.Action),
		zap.String("category", entry.Category),
		zap.String("reason", entry.Reason),
		zap.Int("warn_count", entry.WarnCount),
	)
	return id
}

func (a *Audit) Sync() error {
	if a == nil || a.logger == nil {
		return nil
	}
	return a.logger.Sync()
}
