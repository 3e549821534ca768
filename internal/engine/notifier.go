package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// Уровни пользовательских уведомлений.
const (
	NoticeInfo  = "info"
	NoticeWarn  = "warn"
	NoticeError = "error"
)

// Notice — сообщение для пользователя с указанием комбинации,
// к которой оно относится.
type Notice struct {
	Level   string         `json:"level"`
	Key     domain.TestKey `json:"key"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
}

// Notifier доставляет уведомления в UI-слой. Консольный сервис держит
// ленту уведомлений; по умолчанию уведомления просто логируются.
type Notifier interface {
	Notify(n Notice)
}

type logNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notices")}
}

func (l *logNotifier) Notify(n Notice) {
	fields := []zap.Field{zap.Stringer("key", n.Key), zap.String("message", n.Message)}
	switch n.Level {
	case NoticeError:
		l.logger.Error("user notice", fields...)
	case NoticeWarn:
		l.logger.Warn("user notice", fields...)
	default:
		l.logger.Info("user notice", fields...)
	}
}
