package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-story-studio/internal/builder"
	"github.com/shouni/go-story-studio/internal/config"
	"github.com/shouni/go-story-studio/pkg/publisher"
	"github.com/shouni/go-story-studio/pkg/workflow"
)

// Execute は、ストーリー生成から保存までの一連の工程を実行するのだ。
func Execute(ctx context.Context, appCtx *builder.AppContext) error {
	return Run(ctx, appCtx.Manager, appCtx.Publisher, appCtx.Config)
}

// Run は各フェーズを順番に実行します。
// 画像・動画の一括生成で一部のシーンが失敗しても、成功した分は保存してから終わるのだ。
func Run(ctx context.Context, mgr *workflow.Manager, pub *publisher.ScenePublisher, cfg *config.Config) error {
	opts := cfg.Options

	// --- Phase 1: Story Phase (台本作成) ---
	slog.Info("Phase 1: ストーリー生成を開始するのだ...", "scenes", cfg.StoryConfig().SceneCount)
	if _, err := mgr.GenerateStory(ctx, cfg.StoryConfig()); err != nil {
		return err
	}

	var batchErr error

	// --- Phase 2: Image Phase (イメージ作成) ---
	if opts.Images || opts.Videos {
		slog.Info("Phase 2: 画像生成を開始するのだ...")
		res, err := mgr.GenerateAllImages(ctx)
		logBatch("image", res)
		if err != nil {
			batchErr = errors.Join(batchErr, fmt.Errorf("画像生成に失敗したシーンがあります: %w", err))
		}
	}

	// --- Phase 3: Video Phase (動画作成) ---
	if opts.Videos {
		slog.Info("Phase 3: 動画生成を開始するのだ...")
		res, err := mgr.GenerateAllVideos(ctx)
		logBatch("video", res)
		if err != nil {
			batchErr = errors.Join(batchErr, fmt.Errorf("動画生成に失敗したシーンがあります: %w", err))
		}
	}

	// --- Phase 4: Publish Phase (保存) ---
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	result, err := pub.Publish(ctx, mgr.StoryConfig(), mgr.Board().Scenes(), publisher.Options{OutputDir: outputDir})
	if err != nil {
		return fmt.Errorf("公開処理に失敗したのだ: %w", err)
	}
	slog.Info("保存が完了したのだ！", "scenes", result.ScenesPath, "storyboard", result.StoryboardPath)

	return batchErr
}

func logBatch(kind string, res workflow.BatchResult) {
	for id, err := range res.Failed {
		slog.Warn("シーンの生成に失敗しました", "kind", kind, "scene_id", id, "error", err)
	}
}
