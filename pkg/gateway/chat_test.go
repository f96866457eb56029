package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-story-studio/pkg/domain"
)

func TestChatTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("断片が生成順に届くのだ", func(t *testing.T) {
		fp := &fakeProvider{chatChunks: []string{"Hel", "lo,", " world"}}
		g := newTestGateway(t, fp)

		history := []domain.ChatTurn{
			{Role: domain.RoleModel, Text: "Hi! How can I help?"},
			{Role: domain.RoleUser, Text: "Name ideas for a pirate cat"},
			{Role: domain.RoleModel, Text: "Captain Whiskers"},
		}
		stream, err := g.ChatTurn(ctx, history, "More please")
		require.NoError(t, err)

		var got []string
		for frag, err := range stream {
			require.NoError(t, err)
			got = append(got, frag)
		}
		assert.Equal(t, []string{"Hel", "lo,", " world"}, got)

		assert.Equal(t, "gemini-3-pro-preview", fp.chatModel)
		assert.Equal(t, "More please", fp.chatMessage)
		require.Len(t, fp.chatHistory, 3)
		assert.Equal(t, "model", fp.chatHistory[0].Role)
		assert.Equal(t, "user", fp.chatHistory[1].Role)
		assert.Equal(t, "Captain Whiskers", fp.chatHistory[2].Parts[0].Text)
		require.NotNil(t, fp.chatConfig.ThinkingConfig)
		assert.EqualValues(t, 2048, *fp.chatConfig.ThinkingConfig.ThinkingBudget)
	})

	t.Run("途中のエラーは ChatFailed で終わる", func(t *testing.T) {
		fp := &fakeProvider{chatChunks: []string{"partial"}, chatErr: errors.New("stream reset")}
		g := newTestGateway(t, fp)

		stream, err := g.ChatTurn(ctx, nil, "hi")
		require.NoError(t, err)

		var frags []string
		var streamErr error
		for frag, err := range stream {
			if err != nil {
				streamErr = err
				break
			}
			frags = append(frags, frag)
		}
		assert.Equal(t, []string{"partial"}, frags)
		assert.ErrorIs(t, streamErr, ErrChatFailed)
	})

	t.Run("ストリームは一度しか反復できない", func(t *testing.T) {
		fp := &fakeProvider{chatChunks: []string{"a", "b"}}
		g := newTestGateway(t, fp)

		stream, err := g.ChatTurn(ctx, nil, "hi")
		require.NoError(t, err)

		for range stream {
		}
		var second []error
		for _, err := range stream {
			second = append(second, err)
		}
		require.Len(t, second, 1)
		assert.ErrorIs(t, second[0], ErrChatFailed)
	})
}
