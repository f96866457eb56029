package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/go-story-studio/pkg/domain"
)

var (
	ErrSceneNotFound = errors.New("シーンが見つかりません")
	ErrImageRequired = errors.New("動画生成には画像が必要です")
	// ErrStaleResponse は後続のリクエストに追い越された応答が破棄されたことを示します。
	ErrStaleResponse = errors.New("古いリクエストの応答を破棄しました")
)

// MediaGenerator はシーンの画像・動画を生成するゲートウェイ側の契約です。
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string, cfg domain.StoryConfig) (string, error)
	GenerateVideo(ctx context.Context, imageRef, prompt string, aspect domain.AspectRatio) (string, error)
}

type kind string

const (
	kindImage kind = "image"
	kindVideo kind = "video"
)

type tokenKey struct {
	id   int
	kind kind
}

// Board はシーン群と、シーンごとに独立した画像・動画の状態機械を保持します。
// 更新はすべて ID をキーにしたマージで、他のシーンや無関係なフィールドには触れません。
type Board struct {
	mu     sync.RWMutex
	order  []int
	scenes map[int]domain.Scene
	tokens map[tokenKey]uint64
	seq    uint64

	media    MediaGenerator
	notifier domain.Notifier
	onChange func(domain.Scene)
}

// Option は Board の任意設定です。
type Option func(*Board)

// WithNotifier は失敗時の通知先を設定します。
func WithNotifier(n domain.Notifier) Option {
	return func(b *Board) { b.notifier = n }
}

// WithOnChange はシーンが更新されるたびに呼ばれるフックを設定します。
// フックはロックの外で呼ばれます。
func WithOnChange(fn func(domain.Scene)) Option {
	return func(b *Board) { b.onChange = fn }
}

// NewBoard は空の Board を生成します。
func NewBoard(media MediaGenerator, opts ...Option) *Board {
	b := &Board{
		scenes: make(map[int]domain.Scene),
		tokens: make(map[tokenKey]uint64),
		media:  media,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Replace はシーン群を丸ごと差し替えます。ストーリー生成が成功したときだけ呼ばれます。
// 進行中のリクエストはトークンが無効になるため、応答は破棄されます。
func (b *Board) Replace(scenes []domain.Scene) error {
	seen := make(map[int]struct{}, len(scenes))
	for _, s := range scenes {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("シーン ID が重複しています: %d", s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	b.mu.Lock()
	b.order = make([]int, 0, len(scenes))
	b.scenes = make(map[int]domain.Scene, len(scenes))
	b.tokens = make(map[tokenKey]uint64)
	for _, s := range scenes {
		b.order = append(b.order, s.ID)
		b.scenes[s.ID] = s.Clone()
	}
	b.mu.Unlock()

	slog.Info("Board: Scenes replaced", "count", len(scenes))
	return nil
}

// Scenes は作成順を保ったスナップショットを返します。
func (b *Board) Scenes() []domain.Scene {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Scene, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.scenes[id].Clone())
	}
	return out
}

// Scene は ID でシーンを取得します。
func (b *Board) Scene(id int) (domain.Scene, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.scenes[id]
	return s.Clone(), ok
}

// Len はシーン数です。
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Update は部分更新をマージします。
func (b *Board) Update(id int, u domain.SceneUpdate) (domain.Scene, error) {
	b.mu.Lock()
	s, ok := b.scenes[id]
	if !ok {
		b.mu.Unlock()
		return domain.Scene{}, fmt.Errorf("%w: id=%d", ErrSceneNotFound, id)
	}
	s = s.Merge(u)
	b.scenes[id] = s
	b.mu.Unlock()

	b.changed(s)
	return s.Clone(), nil
}

// EditPrompt はユーザーが編集したビジュアルプロンプトを保存します。
// 次の画像生成ではこの文字列がそのまま送られます。
func (b *Board) EditPrompt(id int, prompt string) (domain.Scene, error) {
	return b.Update(id, domain.SceneUpdate{Prompt: &prompt})
}

// GenerateImage はシーンの画像を生成します。
// 状態は generating を経て complete か error に遷移し、generating のまま残ることはありません。
func (b *Board) GenerateImage(ctx context.Context, id int, cfg domain.StoryConfig) error {
	generating := domain.StateGenerating
	noFailure := domain.FailureNone
	s, token, err := b.dispatch(id, kindImage, domain.SceneUpdate{ImageState: &generating, ImageFailure: &noFailure}, nil)
	if err != nil {
		return err
	}

	log := slog.With("scene_id", id, "kind", kindImage, "token", token)
	log.InfoContext(ctx, "Board: Starting image generation")
	startTime := time.Now()

	url, genErr := b.media.GenerateImage(ctx, s.Prompt, cfg)
	if genErr != nil {
		reason := failureReason(ctx, genErr)
		state := domain.StateError
		return b.settle(ctx, id, kindImage, token, domain.SceneUpdate{ImageState: &state, ImageFailure: &reason}, genErr)
	}

	// 動画は古い画像から作られたものなので、画像を差し替えたら空に戻すのだ。
	complete := domain.StateComplete
	empty := domain.StateEmpty
	noVideo := ""
	u := domain.SceneUpdate{
		ImageState:   &complete,
		ImageURL:     &url,
		VideoState:   &empty,
		VideoURL:     &noVideo,
		VideoFailure: &noFailure,
	}
	if err := b.settle(ctx, id, kindImage, token, u, nil); err != nil {
		return err
	}
	log.InfoContext(ctx, "Board: Image generation completed", "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// GenerateVideo はシーンの現在の画像から動画を生成します。
// 画像がないシーンでは ErrImageRequired を返し、状態は変わりません。
func (b *Board) GenerateVideo(ctx context.Context, id int, aspect domain.AspectRatio) error {
	generating := domain.StateGenerating
	noFailure := domain.FailureNone
	s, token, err := b.dispatch(id, kindVideo, domain.SceneUpdate{VideoState: &generating, VideoFailure: &noFailure}, requireImage)
	if err != nil {
		return err
	}

	log := slog.With("scene_id", id, "kind", kindVideo, "token", token)
	log.InfoContext(ctx, "Board: Starting video generation")
	startTime := time.Now()

	ref, genErr := b.media.GenerateVideo(ctx, s.ImageURL, s.Prompt, aspect)
	if genErr != nil {
		reason := failureReason(ctx, genErr)
		state := domain.StateError
		return b.settle(ctx, id, kindVideo, token, domain.SceneUpdate{VideoState: &state, VideoFailure: &reason}, genErr)
	}

	complete := domain.StateComplete
	if err := b.settle(ctx, id, kindVideo, token, domain.SceneUpdate{VideoState: &complete, VideoURL: &ref}, nil); err != nil {
		return err
	}
	log.InfoContext(ctx, "Board: Video generation completed", "duration", time.Since(startTime).Round(time.Second))
	return nil
}

func requireImage(s domain.Scene) error {
	if !s.HasImage() {
		return fmt.Errorf("%w: scene=%d", ErrImageRequired, s.ID)
	}
	return nil
}

// dispatch は前提条件を確認し、generating への遷移と新しいトークンの発行を原子的に行います。
func (b *Board) dispatch(id int, k kind, u domain.SceneUpdate, precondition func(domain.Scene) error) (domain.Scene, uint64, error) {
	b.mu.Lock()
	s, ok := b.scenes[id]
	if !ok {
		b.mu.Unlock()
		return domain.Scene{}, 0, fmt.Errorf("%w: id=%d", ErrSceneNotFound, id)
	}
	if precondition != nil {
		if err := precondition(s); err != nil {
			b.mu.Unlock()
			return domain.Scene{}, 0, err
		}
	}
	b.seq++
	token := b.seq
	b.tokens[tokenKey{id: id, kind: k}] = token
	s = s.Merge(u)
	b.scenes[id] = s
	b.mu.Unlock()

	b.changed(s)
	return s.Clone(), token, nil
}

// settle は応答を反映します。トークンが最新でなければ何も変更せず ErrStaleResponse を返します。
// cause が nil でなければ通知を出し、cause を返します。
func (b *Board) settle(ctx context.Context, id int, k kind, token uint64, u domain.SceneUpdate, cause error) error {
	b.mu.Lock()
	s, ok := b.scenes[id]
	if !ok || b.tokens[tokenKey{id: id, kind: k}] != token {
		b.mu.Unlock()
		slog.WarnContext(ctx, "Board: Discarding stale response", "scene_id", id, "kind", k, "token", token, "error", cause)
		return ErrStaleResponse
	}
	if k == kindImage && cause == nil {
		// 古い画像に対する生成中の動画の応答も破棄させます。
		delete(b.tokens, tokenKey{id: id, kind: kindVideo})
	}
	s = s.Merge(u)
	b.scenes[id] = s
	b.mu.Unlock()

	b.changed(s)

	if cause != nil {
		slog.ErrorContext(ctx, "Board: Generation failed", "scene_id", id, "kind", k, "error", cause)
		b.notify(ctx, domain.Notification{
			Level:   domain.LevelError,
			Message: fmt.Sprintf("Scene %d: %s generation failed.", id, k),
			SceneID: id,
			Err:     cause,
		})
		return cause
	}
	return nil
}

func (b *Board) changed(s domain.Scene) {
	if b.onChange != nil {
		b.onChange(s.Clone())
	}
}

func (b *Board) notify(ctx context.Context, n domain.Notification) {
	if b.notifier != nil {
		b.notifier.Notify(ctx, n)
	}
}

// failureReason は呼び出し元の ctx の状態からキャンセルとタイムアウトを区別します。
func failureReason(ctx context.Context, err error) domain.FailureReason {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.FailureCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		return domain.FailureTimeout
	default:
		return domain.FailureFailed
	}
}

// timeoutError は ErrVideoGenerationTimeout のようにタイムアウトを表すエラーを判定するためのインターフェースです。
type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}
