package workflow

import (
	"context"

	"github.com/shouni/go-story-studio/pkg/chat"
	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/scene"
)

// Gateway は、ワークフローが利用するリモート生成の4操作をまとめたインターフェースです。
// *gateway.Gateway がこれを満たします。
type Gateway interface {
	GenerateStory(ctx context.Context, cfg domain.StoryConfig) ([]domain.Scene, error)
	scene.MediaGenerator
	chat.Streamer
}

// Library は保存済みプロジェクトの一覧を扱う口です。現時点では未実装です。
type Library interface {
	SavedProjects(ctx context.Context) ([]string, error)
}
