package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-story-studio/pkg/domain"
)

const (
	DefaultGreeting     = "Hi! I can help you brainstorm story ideas, character names, or refine your scripts. What are you working on?"
	DefaultErrorMessage = "I'm sorry, I encountered an error. Please try again."
)

// ErrEmptyMessage は空のメッセージが送られたことを示します。
var ErrEmptyMessage = errors.New("メッセージが空です")

// Streamer はチャットの1ターンをストリームで返すゲートウェイ側の契約です。
type Streamer interface {
	ChatTurn(ctx context.Context, history []domain.ChatTurn, message string) (iter.Seq2[string, error], error)
}

// Session は1つのチャットセッションの履歴を所有します。
// ターンは直列化され、前のストリームを読み終えるまで次のターンは送信されません。
type Session struct {
	streamer Streamer
	notifier domain.Notifier
	now      func() time.Time
	greeting string

	turnMu sync.Mutex // 1ターン全体を直列化する
	mu     sync.RWMutex
	log    []domain.ChatMessage
}

// Option は Session の任意設定です。
type Option func(*Session)

// WithNotifier は失敗時の通知先を設定します。
func WithNotifier(n domain.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithGreeting は最初に表示するモデルの挨拶を差し替えます。空文字なら挨拶なしで始めます。
func WithGreeting(text string) Option {
	return func(s *Session) { s.greeting = text }
}

// WithClock はタイムスタンプの取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession はモデルの挨拶から始まるセッションを生成します。
func NewSession(streamer Streamer, opts ...Option) *Session {
	s := &Session{streamer: streamer, now: time.Now, greeting: DefaultGreeting}
	for _, opt := range opts {
		opt(s)
	}
	if s.greeting != "" {
		s.log = append(s.log, domain.ChatMessage{Role: domain.RoleModel, Text: s.greeting, Timestamp: s.now()})
	}
	return s
}

// Messages は履歴のスナップショットを返します。
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, len(s.log))
	copy(out, s.log)
	return out
}

// Send はユーザーのメッセージを追加し、モデルの応答をストリームで受け取ります。
// モデルのメッセージは1件だけ作られ、断片が届くたびにその場で追記されます。
// onFragment が nil でなければ、断片ごとにその断片と現在までの応答全文を受け取ります。
// 失敗してもユーザーのメッセージは残り、エラーメッセージが追加されます。
func (s *Session) Send(ctx context.Context, text string, onFragment func(fragment, full string)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	history := s.history()
	s.append(domain.ChatMessage{Role: domain.RoleUser, Text: text, Timestamp: s.now()})

	stream, err := s.streamer.ChatTurn(ctx, history, text)
	if err != nil {
		return s.fail(ctx, err, -1)
	}

	idx := s.append(domain.ChatMessage{Role: domain.RoleModel, Timestamp: s.now()})
	for fragment, err := range stream {
		if err != nil {
			return s.fail(ctx, err, idx)
		}
		full := s.appendText(idx, fragment)
		if onFragment != nil {
			onFragment(fragment, full)
		}
	}
	return nil
}

// history はゲートウェイに渡す形に変換した現在の履歴です。
func (s *Session) history() []domain.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]domain.ChatTurn, 0, len(s.log))
	for _, m := range s.log {
		turns = append(turns, domain.ChatTurn{Role: m.Role, Text: m.Text})
	}
	return turns
}

func (s *Session) append(m domain.ChatMessage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, m)
	return len(s.log) - 1
}

func (s *Session) appendText(idx int, fragment string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log[idx].Text += fragment
	return s.log[idx].Text
}

// fail はエラーメッセージを履歴に残します。
// 応答用のメッセージがまだ空ならそこに書き込み、部分応答があれば別のメッセージとして追加します。
func (s *Session) fail(ctx context.Context, err error, idx int) error {
	slog.ErrorContext(ctx, "Chat: Turn failed", "error", err)

	s.mu.Lock()
	if idx >= 0 && s.log[idx].Text == "" {
		s.log[idx].Text = DefaultErrorMessage
	} else {
		s.log = append(s.log, domain.ChatMessage{Role: domain.RoleModel, Text: DefaultErrorMessage, Timestamp: s.now()})
	}
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.Notification{Level: domain.LevelError, Message: DefaultErrorMessage, Err: err})
	}
	return err
}
