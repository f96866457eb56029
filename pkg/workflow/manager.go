package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shouni/go-story-studio/pkg/chat"
	"github.com/shouni/go-story-studio/pkg/config"
	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/scene"
)

// ManagerArgs は Manager の依存関係です。
type ManagerArgs struct {
	Config   config.Config
	Gateway  Gateway
	Notifier domain.Notifier
	// OnSceneChange はシーンの状態が変わるたびに呼ばれます（表示層の再描画用）。
	OnSceneChange func(domain.Scene)
}

// Manager は、1つの制作セッションを束ねます。
// StoryConfig・シーンボード・チャットセッションを所有し、表示層からの操作を受け付けます。
type Manager struct {
	cfg      config.Config
	gateway  Gateway
	notifier domain.Notifier
	board    *scene.Board
	chat     *chat.Session
	limiter  *rate.Limiter

	mu    sync.RWMutex
	story domain.StoryConfig
}

// New は、設定とゲートウェイを基に新しい Manager を初期化します。
func New(args ManagerArgs) (*Manager, error) {
	if args.Gateway == nil {
		return nil, fmt.Errorf("Gateway は必須です")
	}
	cfg := args.Config.WithDefaults()

	notifier := args.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(slog.Default())
	}

	boardOpts := []scene.Option{scene.WithNotifier(notifier)}
	if args.OnSceneChange != nil {
		boardOpts = append(boardOpts, scene.WithOnChange(args.OnSceneChange))
	}

	return &Manager{
		cfg:      cfg,
		gateway:  args.Gateway,
		notifier: notifier,
		board:    scene.NewBoard(args.Gateway, boardOpts...),
		chat:     chat.NewSession(args.Gateway, chat.WithNotifier(notifier)),
		limiter:  rate.NewLimiter(rate.Every(cfg.RateInterval), cfg.RateBurst),
		story:    domain.DefaultStoryConfig(),
	}, nil
}

// Board はシーンボードを返します。
func (m *Manager) Board() *scene.Board { return m.board }

// Chat はチャットセッションを返します。
func (m *Manager) Chat() *chat.Session { return m.chat }

// StoryConfig は現在の設定を返します。
func (m *Manager) StoryConfig() domain.StoryConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.story
}

// SetStoryConfig はフォームの変更を反映します。以降の画像・動画生成はこの設定を使います。
func (m *Manager) SetStoryConfig(cfg domain.StoryConfig) {
	m.mu.Lock()
	m.story = cfg.Normalize()
	m.mu.Unlock()
}

// GenerateStory はストーリーを生成し、成功した場合だけシーン群を差し替えます。
// 失敗時は既存のシーンに一切触れず、通知を出してエラーを返します。
func (m *Manager) GenerateStory(ctx context.Context, cfg domain.StoryConfig) ([]domain.Scene, error) {
	cfg = cfg.Normalize()
	m.SetStoryConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Manager: Generating story", "scene_count", cfg.SceneCount, "style", cfg.ArtStyle)
	scenes, err := m.gateway.GenerateStory(ctx, cfg)
	if err != nil {
		m.notifier.Notify(ctx, domain.Notification{
			Level:   domain.LevelError,
			Message: "Failed to generate story. Please check your API key and try again.",
			Err:     err,
		})
		return nil, fmt.Errorf("ストーリー生成に失敗しました: %w", err)
	}

	if err := m.board.Replace(scenes); err != nil {
		return nil, err
	}
	return m.board.Scenes(), nil
}

// GenerateSceneImage は1シーンの画像を現在の設定で生成します。
func (m *Manager) GenerateSceneImage(ctx context.Context, id int) error {
	return m.board.GenerateImage(ctx, id, m.StoryConfig())
}

// GenerateSceneVideo は1シーンの動画を現在のアスペクト比で生成します。
func (m *Manager) GenerateSceneVideo(ctx context.Context, id int) error {
	return m.board.GenerateVideo(ctx, id, m.StoryConfig().AspectRatio)
}

// SendChat はチャットに1ターン送信します。
func (m *Manager) SendChat(ctx context.Context, text string, onFragment func(fragment, full string)) error {
	return m.chat.Send(ctx, text, onFragment)
}

// SavedProjects はライブラリ機能のスタブです。
func (m *Manager) SavedProjects(context.Context) ([]string, error) {
	return nil, domain.ErrLibraryNotImplemented
}

var _ Library = (*Manager)(nil)
