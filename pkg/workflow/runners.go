package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/scene"
)

// errSkipped は前提条件を満たさず生成を行わなかったシーンを示します。
var errSkipped = errors.New("skipped")

// BatchResult は一括生成の結果です。
type BatchResult struct {
	Succeeded []int
	Failed    map[int]error
	Skipped   []int
}

// GenerateAllImages は全シーンの画像を並列に生成します。
// リクエストはレートリミッタで間隔を空け、1シーンの失敗は他のシーンに影響しません。
func (m *Manager) GenerateAllImages(ctx context.Context) (BatchResult, error) {
	cfg := m.StoryConfig()
	return m.runBatch(ctx, "image", func(ctx context.Context, s domain.Scene) error {
		return m.board.GenerateImage(ctx, s.ID, cfg)
	})
}

// GenerateAllVideos は画像のある全シーンの動画を並列に生成します。画像のないシーンはスキップします。
func (m *Manager) GenerateAllVideos(ctx context.Context) (BatchResult, error) {
	aspect := m.StoryConfig().AspectRatio
	return m.runBatch(ctx, "video", func(ctx context.Context, s domain.Scene) error {
		if !s.HasImage() {
			return errSkipped
		}
		return m.board.GenerateVideo(ctx, s.ID, aspect)
	})
}

func (m *Manager) runBatch(ctx context.Context, kind string, run func(context.Context, domain.Scene) error) (BatchResult, error) {
	scenes := m.board.Scenes()
	result := BatchResult{Failed: make(map[int]error)}

	// 同時実行数はバーストと同じだけに抑えるのだ。
	// シーンの失敗は他に波及させず、キャンセルなど待機自体の失敗だけを errgroup に返します。
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.cfg.RateBurst)

	for _, s := range scenes {
		eg.Go(func() error {
			logger := slog.With("scene_id", s.ID, "kind", kind)

			if err := m.limiter.Wait(egCtx); err != nil {
				mu.Lock()
				result.Failed[s.ID] = err
				mu.Unlock()
				return err
			}

			startTime := time.Now()
			err := run(egCtx, s)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errSkipped), errors.Is(err, scene.ErrImageRequired):
				logger.Info("Skipping scene without image")
				result.Skipped = append(result.Skipped, s.ID)
			case err != nil:
				result.Failed[s.ID] = err
			default:
				logger.Info("Scene generation completed", "duration", time.Since(startTime).Round(time.Millisecond))
				result.Succeeded = append(result.Succeeded, s.ID)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		slog.WarnContext(ctx, "Manager: Batch interrupted", "kind", kind, "error", err)
	}

	slog.InfoContext(ctx, "Manager: Batch finished", "kind", kind,
		"succeeded", len(result.Succeeded), "failed", len(result.Failed), "skipped", len(result.Skipped))

	if len(result.Failed) > 0 {
		errs := make([]error, 0, len(result.Failed))
		for _, s := range scenes {
			if err, ok := result.Failed[s.ID]; ok {
				errs = append(errs, fmt.Errorf("scene %d: %w", s.ID, err))
			}
		}
		return result, errors.Join(errs...)
	}
	return result, nil
}
