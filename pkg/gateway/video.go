package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/asset"
	"github.com/shouni/go-story-studio/pkg/domain"
)

// VideoAspectRatio は動画モデルが扱える比率に丸めます。
// 縦長 (9:16) だけをそのまま通し、それ以外はすべて 16:9 になります。
// 正方形や 21:9 の情報は失われますが、これはモデル側の制約です。
func VideoAspectRatio(ar domain.AspectRatio) domain.AspectRatio {
	if ar == domain.AspectPortrait {
		return domain.AspectPortrait
	}
	return domain.AspectWide
}

// GenerateVideo は画像を元に動画生成ジョブを投入し、完了までポーリングします。
// 完了した動画はメディアストアに保存され、"media://" 参照が返ります。
func (g *Gateway) GenerateVideo(ctx context.Context, imageRef, prompt string, aspect domain.AspectRatio) (videoRef string, err error) {
	start := time.Now()
	defer func() { observe(opVideo, start, err) }()

	source, err := g.resolveImage(imageRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVideoGenerationFailed, err)
	}

	p, err := g.provider(ctx)
	if err != nil {
		return "", err
	}

	ratio := VideoAspectRatio(aspect)
	log := slog.With("model", g.cfg.VideoModel, "aspect_ratio", ratio)
	log.InfoContext(ctx, "Gateway: Submitting video generation job")

	op, err := g.submitVideo(ctx, p, source, prompt, ratio)
	if err != nil {
		return "", err
	}

	op, err = g.pollVideo(ctx, p, op)
	if err != nil {
		return "", err
	}
	if len(op.Error) > 0 {
		return "", fmt.Errorf("%w: リモートジョブがエラーを返しました: %v", ErrVideoGenerationFailed, op.Error)
	}

	video := firstVideo(op)
	if video == nil || (video.URI == "" && len(video.VideoBytes) == 0) {
		return "", ErrNoVideoReturned
	}

	data := video.VideoBytes
	if len(data) == 0 {
		data, err = g.downloadVideo(ctx, p, video)
		if err != nil {
			return "", err
		}
	}

	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = asset.DefaultVideoMIMEType
	}
	ref := g.store.Put(data, mimeType)
	log.InfoContext(ctx, "Gateway: Video generation completed", "ref", ref, "bytes", len(data), "duration", time.Since(start).Round(time.Second))
	return ref, nil
}

// submitVideo はジョブを投入します。投入だけに RequestTimeout の期限を設けます。
func (g *Gateway) submitVideo(ctx context.Context, p Provider, source asset.Asset, prompt string, ratio domain.AspectRatio) (*genai.GenerateVideosOperation, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	op, err := p.GenerateVideos(reqCtx, g.cfg.VideoModel, g.mediaPrompt.BuildVideoPrompt(prompt),
		&genai.Image{ImageBytes: source.Data, MIMEType: source.MIMEType},
		&genai.GenerateVideosConfig{
			NumberOfVideos: 1,
			AspectRatio:    string(ratio),
			Resolution:     g.cfg.VideoResolution,
		},
	)
	if err != nil {
		return nil, g.requestError(ctx, reqCtx, "ジョブの投入", err)
	}
	return op, nil
}

// downloadVideo は完了した動画を取得します。取得にも RequestTimeout の期限を設けます。
func (g *Gateway) downloadVideo(ctx context.Context, p Provider, video *genai.Video) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	data, err := p.DownloadVideo(reqCtx, video)
	if err != nil {
		return nil, g.requestError(ctx, reqCtx, "動画の取得", err)
	}
	return data, nil
}

// requestError は単発リクエストの失敗を分類します。
// 呼び出し元のキャンセルは Failed、RequestTimeout の超過は Timeout になります。
func (g *Gateway) requestError(parent, reqCtx context.Context, step string, err error) error {
	if parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %sが %s 以内に終わりませんでした: %w", ErrVideoGenerationTimeout, step, g.cfg.RequestTimeout, err)
	}
	return fmt.Errorf("%w: %sに失敗: %w", ErrVideoGenerationFailed, step, err)
}

// pollVideo はジョブが完了するまで PollInterval ごとに状態を再取得します。
// 待機中はタイマーで休止し、ワーカーを占有しません。
// 試行回数 (MaxPollAttempts) と壁時計 (VideoTimeout) のどちらかを超えると ErrVideoGenerationTimeout を返します。
func (g *Gateway) pollVideo(ctx context.Context, p Provider, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, g.cfg.VideoTimeout)
	defer cancel()

	timer := time.NewTimer(g.cfg.PollInterval)
	defer timer.Stop()

	attempts := 0
	defer func() { videoPollAttempts.Observe(float64(attempts)) }()

	for op == nil || !op.Done {
		if op == nil {
			return nil, fmt.Errorf("%w: ジョブの状態が取得できません", ErrVideoGenerationFailed)
		}
		if g.cfg.MaxPollAttempts > 0 && attempts >= g.cfg.MaxPollAttempts {
			return nil, fmt.Errorf("%w: %d 回ポーリングしても完了しませんでした", ErrVideoGenerationTimeout, attempts)
		}

		select {
		case <-pollCtx.Done():
			return nil, g.pollError(ctx, pollCtx.Err())
		case <-timer.C:
		}

		attempts++
		slog.DebugContext(ctx, "Gateway: Polling video operation", "attempt", attempts, "name", op.Name)

		next, err := p.GetVideosOperation(pollCtx, op)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, g.pollError(ctx, pollCtx.Err())
			}
			return nil, fmt.Errorf("%w: ジョブ状態の取得に失敗: %w", ErrVideoGenerationFailed, err)
		}
		op = next
		timer.Reset(g.cfg.PollInterval)
	}
	return op, nil
}

// pollError は呼び出し元のキャンセルと VideoTimeout 超過を区別します。
func (g *Gateway) pollError(parent context.Context, cause error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", ErrVideoGenerationFailed, parent.Err())
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s 以内に完了しませんでした", ErrVideoGenerationTimeout, g.cfg.VideoTimeout)
	}
	return fmt.Errorf("%w: %w", ErrVideoGenerationFailed, cause)
}

// resolveImage は data URL またはメディアストア参照から元画像を取り出します。
func (g *Gateway) resolveImage(ref string) (asset.Asset, error) {
	if ref == "" {
		return asset.Asset{}, errors.New("元画像が指定されていません")
	}
	if asset.IsReference(ref) {
		return g.store.Get(ref)
	}
	img, err := asset.DecodeDataURL(ref)
	if err != nil {
		return asset.Asset{}, err
	}
	return img, nil
}

func firstVideo(op *genai.GenerateVideosOperation) *genai.Video {
	if op == nil || op.Response == nil {
		return nil
	}
	for _, gv := range op.Response.GeneratedVideos {
		if gv != nil && gv.Video != nil {
			return gv.Video
		}
	}
	return nil
}
