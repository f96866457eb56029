package domain

import (
	"context"
	"errors"
)

// ErrLibraryNotImplemented は保存済みプロジェクト（ライブラリ）機能が未実装であることを示します。
var ErrLibraryNotImplemented = errors.New("ライブラリ機能はまだ実装されていません")

// Level は通知の重要度です。
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification は表示層に渡すユーザー向けの通知なのだ。
// 失敗してもプロセスは継続するので、すべて非致命的な通知として扱います。
type Notification struct {
	Level   Level
	Message string
	SceneID int // シーンに紐づかない通知では 0
	Err     error
}

// Notifier はユーザーに通知を届ける表示層側の口です。
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc は関数を Notifier として扱うためのアダプタです。
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }
