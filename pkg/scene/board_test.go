package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-story-studio/pkg/domain"
)

type fakeMedia struct {
	mu         sync.Mutex
	imageCalls []string
	videoCalls []string
	imageFn    func(ctx context.Context, prompt string) (string, error)
	videoFn    func(ctx context.Context, imageRef string) (string, error)
}

func (f *fakeMedia) GenerateImage(ctx context.Context, prompt string, _ domain.StoryConfig) (string, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, prompt)
	fn := f.imageFn
	f.mu.Unlock()
	if fn == nil {
		return "data:image/png;base64,AA==", nil
	}
	return fn(ctx, prompt)
}

func (f *fakeMedia) GenerateVideo(ctx context.Context, imageRef, _ string, _ domain.AspectRatio) (string, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, imageRef)
	fn := f.videoFn
	f.mu.Unlock()
	if fn == nil {
		return "media://video", nil
	}
	return fn(ctx, imageRef)
}

func threeScenes() []domain.Scene {
	return []domain.Scene{
		domain.NewScene(1, "a castle at dawn", []domain.ScriptLine{{Character: "Knight", Text: "We ride."}}),
		domain.NewScene(2, "a forest path", nil),
		domain.NewScene(3, "a dragon's lair", []domain.ScriptLine{{Character: "Dragon", Text: "Who dares?"}}),
	}
}

func newBoard(t *testing.T, media MediaGenerator, opts ...Option) *Board {
	t.Helper()
	b := NewBoard(media, opts...)
	require.NoError(t, b.Replace(threeScenes()))
	return b
}

func TestBoard_ReplaceAndUpdate(t *testing.T) {
	b := newBoard(t, &fakeMedia{})

	t.Run("作成順が保たれるのだ", func(t *testing.T) {
		var ids []int
		for _, s := range b.Scenes() {
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []int{1, 2, 3}, ids)
	})

	t.Run("編集したプロンプトは他のフィールドを壊さない", func(t *testing.T) {
		_, err := b.EditPrompt(3, "a dragon's lair, volumetric light")
		require.NoError(t, err)

		s, ok := b.Scene(3)
		require.True(t, ok)
		assert.Equal(t, "a dragon's lair, volumetric light", s.Prompt)
		assert.Equal(t, "Who dares?", s.Script[0].Text)
		assert.Equal(t, domain.StateEmpty, s.ImageState)
	})

	t.Run("存在しない ID はエラー", func(t *testing.T) {
		_, err := b.EditPrompt(99, "x")
		assert.ErrorIs(t, err, ErrSceneNotFound)
	})

	t.Run("重複した ID は受け付けない", func(t *testing.T) {
		err := b.Replace([]domain.Scene{domain.NewScene(1, "a", nil), domain.NewScene(1, "b", nil)})
		assert.Error(t, err)
		assert.Equal(t, 3, b.Len())
	})

	t.Run("スナップショットを書き換えても内部状態は変わらない", func(t *testing.T) {
		snap := b.Scenes()
		snap[0].Script[0].Text = "tampered"
		s, _ := b.Scene(1)
		assert.Equal(t, "We ride.", s.Script[0].Text)
	})
}

func TestBoard_GenerateImage_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{}

	var mu sync.Mutex
	var transitions []domain.GenerationState
	var notes []domain.Notification
	b := newBoard(t, media,
		WithOnChange(func(s domain.Scene) {
			if s.ID != 2 {
				return
			}
			mu.Lock()
			transitions = append(transitions, s.ImageState)
			mu.Unlock()
		}),
		WithNotifier(domain.NotifierFunc(func(_ context.Context, n domain.Notification) {
			notes = append(notes, n)
		})),
	)

	media.imageFn = func(context.Context, string) (string, error) {
		s, _ := b.Scene(2)
		assert.Equal(t, domain.StateGenerating, s.ImageState)
		return "", errors.New("quota exceeded")
	}
	err := b.GenerateImage(ctx, 2, domain.DefaultStoryConfig())
	require.Error(t, err)

	s, _ := b.Scene(2)
	assert.Equal(t, domain.StateError, s.ImageState)
	assert.Equal(t, domain.FailureFailed, s.ImageFailure)
	assert.Empty(t, s.ImageURL)
	require.Len(t, notes, 1)
	assert.Equal(t, 2, notes[0].SceneID)
	assert.Equal(t, domain.LevelError, notes[0].Level)

	media.imageFn = func(context.Context, string) (string, error) {
		s, _ := b.Scene(2)
		assert.Empty(t, s.ImageURL, "URL は成功するまで設定されないのだ")
		return "data:image/png;base64,OK==", nil
	}
	require.NoError(t, b.GenerateImage(ctx, 2, domain.DefaultStoryConfig()))

	s, _ = b.Scene(2)
	assert.Equal(t, domain.StateComplete, s.ImageState)
	assert.Equal(t, domain.FailureNone, s.ImageFailure)
	assert.Equal(t, "data:image/png;base64,OK==", s.ImageURL)

	assert.Equal(t, []domain.GenerationState{
		domain.StateGenerating, domain.StateError,
		domain.StateGenerating, domain.StateComplete,
	}, transitions)
}

func TestBoard_GenerateImage_UsesEditedPrompt(t *testing.T) {
	media := &fakeMedia{}
	b := newBoard(t, media)

	_, err := b.EditPrompt(1, "a castle at dusk, rain")
	require.NoError(t, err)
	require.NoError(t, b.GenerateImage(context.Background(), 1, domain.DefaultStoryConfig()))

	assert.Equal(t, []string{"a castle at dusk, rain"}, media.imageCalls)
}

func TestBoard_GenerateVideo_RequiresImage(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{}
	b := newBoard(t, media)

	before, _ := b.Scene(1)
	err := b.GenerateVideo(ctx, 1, domain.AspectWide)
	assert.ErrorIs(t, err, ErrImageRequired)
	assert.Empty(t, media.videoCalls, "画像がないシーンで動画生成を呼んではいけないのだ")

	after, _ := b.Scene(1)
	assert.Equal(t, before, after)

	t.Run("画像があれば現在の画像参照で生成する", func(t *testing.T) {
		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))
		require.NoError(t, b.GenerateVideo(ctx, 1, domain.AspectWide))

		s, _ := b.Scene(1)
		assert.Equal(t, domain.StateComplete, s.VideoState)
		assert.Equal(t, "media://video", s.VideoURL)
		assert.Equal(t, []string{"data:image/png;base64,AA=="}, media.videoCalls)
	})

	t.Run("動画の失敗は画像の状態に影響しない", func(t *testing.T) {
		media.videoFn = func(context.Context, string) (string, error) { return "", errors.New("boom") }
		require.Error(t, b.GenerateVideo(ctx, 1, domain.AspectWide))

		s, _ := b.Scene(1)
		assert.Equal(t, domain.StateError, s.VideoState)
		assert.Equal(t, domain.StateComplete, s.ImageState)
		assert.Equal(t, "media://video", s.VideoURL, "以前の動画は残る")
	})
}

func TestBoard_RegeneratedImageResetsVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("画像を再生成すると古い動画はリセットされるのだ", func(t *testing.T) {
		b := newBoard(t, &fakeMedia{})
		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))
		require.NoError(t, b.GenerateVideo(ctx, 1, domain.AspectWide))

		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))

		s, _ := b.Scene(1)
		assert.Equal(t, domain.StateComplete, s.ImageState)
		assert.Equal(t, domain.StateEmpty, s.VideoState)
		assert.Empty(t, s.VideoURL)
		assert.Equal(t, domain.FailureNone, s.VideoFailure)
	})

	t.Run("画像の再生成が失敗したら動画は残る", func(t *testing.T) {
		media := &fakeMedia{}
		b := newBoard(t, media)
		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))
		require.NoError(t, b.GenerateVideo(ctx, 1, domain.AspectWide))

		media.imageFn = func(context.Context, string) (string, error) { return "", errors.New("boom") }
		require.Error(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))

		s, _ := b.Scene(1)
		assert.Equal(t, domain.StateComplete, s.VideoState)
		assert.Equal(t, "media://video", s.VideoURL)
	})

	t.Run("古い画像から生成中の動画の応答は破棄される", func(t *testing.T) {
		media := &fakeMedia{}
		b := newBoard(t, media)
		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))

		started := make(chan struct{})
		release := make(chan struct{})
		media.videoFn = func(context.Context, string) (string, error) {
			close(started)
			<-release
			return "media://old", nil
		}
		errs := make(chan error, 1)
		go func() { errs <- b.GenerateVideo(ctx, 1, domain.AspectWide) }()
		<-started

		require.NoError(t, b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()))
		close(release)
		assert.ErrorIs(t, <-errs, ErrStaleResponse)

		s, _ := b.Scene(1)
		assert.Equal(t, domain.StateEmpty, s.VideoState)
		assert.Empty(t, s.VideoURL)
	})
}

func TestBoard_StaleResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()

	release := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	started := make(chan string, 2)
	media := &fakeMedia{}
	b := newBoard(t, media)

	call := 0
	var callMu sync.Mutex
	media.imageFn = func(context.Context, string) (string, error) {
		callMu.Lock()
		call++
		name := "first"
		if call == 2 {
			name = "second"
		}
		callMu.Unlock()
		started <- name
		<-release[name]
		return "data:image/png;base64," + name, nil
	}

	errs := make(chan error, 2)
	go func() { errs <- b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()) }()
	require.Equal(t, "first", <-started)
	go func() { errs <- b.GenerateImage(ctx, 1, domain.DefaultStoryConfig()) }()
	require.Equal(t, "second", <-started)

	// 無関係なシーン 3 の更新が割り込む
	_, err := b.EditPrompt(3, "the dragon sleeps")
	require.NoError(t, err)

	close(release["second"])
	require.NoError(t, <-errs)
	close(release["first"])
	assert.ErrorIs(t, <-errs, ErrStaleResponse)

	s1, _ := b.Scene(1)
	assert.Equal(t, domain.StateComplete, s1.ImageState)
	assert.Equal(t, "data:image/png;base64,second", s1.ImageURL, "最新のリクエストの応答が勝つのだ")

	s3, _ := b.Scene(3)
	assert.Equal(t, "the dragon sleeps", s3.Prompt)
	assert.Equal(t, domain.StateEmpty, s3.ImageState)
	assert.Empty(t, s3.ImageURL)
	assert.Equal(t, "Who dares?", s3.Script[0].Text)
}

func TestBoard_ReplaceInvalidatesInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	media := &fakeMedia{imageFn: func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "data:image/png;base64,old", nil
	}}
	b := newBoard(t, media)

	errs := make(chan error, 1)
	go func() { errs <- b.GenerateImage(context.Background(), 1, domain.DefaultStoryConfig()) }()
	<-started

	require.NoError(t, b.Replace(threeScenes()))
	close(release)

	assert.ErrorIs(t, <-errs, ErrStaleResponse)
	s, _ := b.Scene(1)
	assert.Equal(t, domain.StateEmpty, s.ImageState)
	assert.Empty(t, s.ImageURL)
}

func TestBoard_Cancellation(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func() (context.Context, context.CancelFunc)
		want   domain.FailureReason
		hangUp bool
	}{
		{"キャンセルは cancelled", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }, domain.FailureCancelled, true},
		{"期限切れは timeout", func() (context.Context, context.CancelFunc) { return context.WithTimeout(context.Background(), 0) }, domain.FailureTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := &fakeMedia{imageFn: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", fmt.Errorf("request aborted: %w", ctx.Err())
			}}
			b := newBoard(t, media)

			ctx, cancel := tt.ctx()
			defer cancel()
			if tt.hangUp {
				cancel()
			}

			err := b.GenerateImage(ctx, 2, domain.DefaultStoryConfig())
			require.Error(t, err)

			s, _ := b.Scene(2)
			assert.Equal(t, domain.StateError, s.ImageState, "generating のまま残ってはいけないのだ")
			assert.Equal(t, tt.want, s.ImageFailure)
		})
	}

	t.Run("ゲートウェイのタイムアウトも timeout", func(t *testing.T) {
		media := &fakeMedia{videoFn: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("wrapped: %w", context.DeadlineExceeded)
		}}
		b := newBoard(t, media)
		require.NoError(t, b.GenerateImage(context.Background(), 1, domain.DefaultStoryConfig()))

		require.Error(t, b.GenerateVideo(context.Background(), 1, domain.AspectWide))
		s, _ := b.Scene(1)
		assert.Equal(t, domain.FailureTimeout, s.VideoFailure)
	})
}

func TestBoard_ConcurrentScenes(t *testing.T) {
	media := &fakeMedia{imageFn: func(_ context.Context, prompt string) (string, error) {
		return "data:image/png;base64," + prompt, nil
	}}
	b := newBoard(t, media)

	var wg sync.WaitGroup
	for _, id := range []int{1, 2, 3} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.GenerateImage(context.Background(), id, domain.DefaultStoryConfig()))
		}()
	}
	wg.Wait()

	for _, s := range b.Scenes() {
		assert.Equal(t, domain.StateComplete, s.ImageState)
		assert.Equal(t, "data:image/png;base64,"+s.Prompt, s.ImageURL)
	}
}
