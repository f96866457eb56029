package cmd

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-story-studio/pkg/chat"
	"github.com/shouni/go-story-studio/pkg/config"
	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/workflow"
)

type echoGateway struct {
	fail    bool
	history [][]domain.ChatTurn
}

func (g *echoGateway) GenerateStory(context.Context, domain.StoryConfig) ([]domain.Scene, error) {
	return nil, errors.New("unused")
}

func (g *echoGateway) GenerateImage(context.Context, string, domain.StoryConfig) (string, error) {
	return "", errors.New("unused")
}

func (g *echoGateway) GenerateVideo(context.Context, string, string, domain.AspectRatio) (string, error) {
	return "", errors.New("unused")
}

func (g *echoGateway) ChatTurn(_ context.Context, history []domain.ChatTurn, message string) (iter.Seq2[string, error], error) {
	g.history = append(g.history, history)
	if g.fail {
		return nil, errors.New("quota exceeded")
	}
	return func(yield func(string, error) bool) {
		_ = yield("echo: ", nil) && yield(message, nil)
	}, nil
}

func newChatManager(t *testing.T, gw *echoGateway) *workflow.Manager {
	t.Helper()
	m, err := workflow.New(workflow.ManagerArgs{Config: config.DefaultConfig(), Gateway: gw})
	require.NoError(t, err)
	return m
}

func TestRunChat(t *testing.T) {
	ctx := context.Background()

	t.Run("入力の各行に返答をストリーミングするのだ", func(t *testing.T) {
		gw := &echoGateway{}
		var out bytes.Buffer

		err := runChat(ctx, strings.NewReader("hello\n\n  \nplot twist?\nexit\nignored\n"), &out, newChatManager(t, gw))
		require.NoError(t, err)

		assert.Contains(t, out.String(), chat.DefaultGreeting)
		assert.Contains(t, out.String(), "model> echo: hello\n")
		assert.Contains(t, out.String(), "model> echo: plot twist?\n")
		assert.NotContains(t, out.String(), "ignored")
		require.Len(t, gw.history, 2)
	})

	t.Run("EOF で正常終了する", func(t *testing.T) {
		var out bytes.Buffer
		err := runChat(ctx, strings.NewReader("hi"), &out, newChatManager(t, &echoGateway{}))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "echo: hi")
	})

	t.Run("失敗したターンはエラーメッセージを表示して続行する", func(t *testing.T) {
		gw := &echoGateway{fail: true}
		var out bytes.Buffer

		err := runChat(ctx, strings.NewReader("one\ntwo\n"), &out, newChatManager(t, gw))
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out.String(), chat.DefaultErrorMessage))
	})
}

func TestGenerateCommand_RequiresPrompt(t *testing.T) {
	saved := opts
	t.Cleanup(func() { opts = saved })
	opts.Prompt = ""

	generateCmd.SetContext(context.Background())
	err := generateCommand(generateCmd, nil)
	assert.ErrorContains(t, err, "--prompt")
}
