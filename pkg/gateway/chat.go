package gateway

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/domain"
)

// ChatTurn は履歴と新しいメッセージを送り、応答テキストの断片を生成順に返します。
// 返るシーケンスは一度しか反復できません。途中のエラーは ErrChatFailed でラップされ、そこで終了します。
func (g *Gateway) ChatTurn(ctx context.Context, history []domain.ChatTurn, message string) (iter.Seq2[string, error], error) {
	start := time.Now()

	p, err := g.provider(ctx)
	if err != nil {
		observe(opChat, start, err)
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  chatRole(turn.Role),
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}

	config := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(g.cfg.ChatThinkingBudget),
		},
	}

	stream := p.StreamChat(ctx, g.cfg.ChatModel, config, contents, message)
	var consumed atomic.Bool

	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", fmt.Errorf("%w: %w", ErrChatFailed, errStreamConsumed))
			return
		}

		var streamErr error
		defer func() { observe(opChat, start, streamErr) }()

		fragments := 0
		for resp, err := range stream {
			if err != nil {
				streamErr = fmt.Errorf("%w: %w", ErrChatFailed, err)
				slog.WarnContext(ctx, "Gateway: Chat stream failed", "fragments", fragments, "error", err)
				yield("", streamErr)
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			fragments++
			if !yield(text, nil) {
				return
			}
		}
		slog.DebugContext(ctx, "Gateway: Chat stream finished", "fragments", fragments, "duration", time.Since(start).Round(time.Millisecond))
	}, nil
}

func chatRole(r domain.Role) string {
	if r == domain.RoleModel {
		return string(genai.RoleModel)
	}
	return string(genai.RoleUser)
}
