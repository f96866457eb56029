package workflow

import (
	"context"
	"log/slog"

	"github.com/shouni/go-story-studio/pkg/domain"
)

// LogNotifier は通知を slog に書き出すデフォルトの Notifier です。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier は LogNotifier を生成します。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) {
	attrs := []any{"scene_id", note.SceneID}
	if note.Err != nil {
		attrs = append(attrs, "error", note.Err)
	}
	level := slog.LevelInfo
	if note.Level == domain.LevelError {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, note.Message, attrs...)
}
