package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-story-studio/internal/config"
	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/gateway"
	"github.com/shouni/go-story-studio/pkg/publisher"
	"github.com/shouni/go-story-studio/pkg/workflow"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各コマンドに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config    *config.Config            // Configは、環境変数とフラグから組み立てた設定です。
	Gateway   *gateway.Gateway          // Gatewayは、リモート生成の4操作を担います。
	Manager   *workflow.Manager         // Managerは、ストーリー・シーン・チャットを束ねるセッションです。
	Publisher *publisher.ScenePublisher // Publisherは、生成物をローカルに保存します。
}

// Option は AppContext 構築時の差し替え口です。主にテストで使います。
type Option func(*gateway.Args)

// WithCredentials は資格情報プロバイダを差し替えます。
func WithCredentials(p gateway.CredentialProvider) Option {
	return func(a *gateway.Args) { a.Credentials = p }
}

// WithProviderFactory はプロバイダの生成方法を差し替えます。
func WithProviderFactory(f gateway.ProviderFactory) Option {
	return func(a *gateway.Args) { a.Connect = f }
}

// BuildAppContext は設定から Gateway と Manager を組み立てるのだ。
// APIキーはここでは読まず、各呼び出しの直前に環境変数から解決されます。
func BuildAppContext(ctx context.Context, cfg *config.Config, notifier domain.Notifier, opts ...Option) (*AppContext, error) {
	args := gateway.Args{
		Config:      cfg.Library,
		Credentials: gateway.NewEnvCredentialProvider(),
	}
	for _, opt := range opts {
		opt(&args)
	}

	gw, err := gateway.New(args)
	if err != nil {
		return nil, fmt.Errorf("Gatewayの初期化に失敗しました: %w", err)
	}

	if notifier == nil {
		notifier = workflow.NewLogNotifier(slog.Default())
	}
	mgr, err := workflow.New(workflow.ManagerArgs{
		Config:   cfg.Library,
		Gateway:  gw,
		Notifier: notifier,
		OnSceneChange: func(s domain.Scene) {
			slog.DebugContext(ctx, "Scene updated", "scene_id", s.ID, "image", s.ImageState, "video", s.VideoState)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Managerの初期化に失敗しました: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Gateway:   gw,
		Manager:   mgr,
		Publisher: publisher.NewScenePublisher(publisher.LocalWriter{}, gw.Store()),
	}, nil
}
