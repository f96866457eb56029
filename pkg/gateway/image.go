package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/asset"
	"github.com/shouni/go-story-studio/pkg/domain"
)

// GenerateImage はシーンのプロンプトから画像を生成し、data URL として返します。
// Scene の状態遷移は呼び出し側の責務です。
func (g *Gateway) GenerateImage(ctx context.Context, prompt string, cfg domain.StoryConfig) (imageURL string, err error) {
	start := time.Now()
	defer func() { observe(opImage, start, err) }()

	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: 画像プロンプトが空です", ErrGenerationFailed)
	}
	cfg = cfg.Normalize()

	p, err := g.provider(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	fullPrompt := g.mediaPrompt.BuildImagePrompt(prompt, cfg.ArtStyle)
	slog.InfoContext(ctx, "Gateway: Starting image generation",
		"model", g.cfg.ImageModel,
		"aspect_ratio", cfg.AspectRatio,
		"resolution", cfg.Resolution,
	)

	resp, err := p.GenerateContent(ctx, g.cfg.ImageModel, genai.Text(fullPrompt), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(cfg.AspectRatio),
			ImageSize:   string(cfg.Resolution),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	blob := firstInlineImage(resp)
	if blob == nil {
		if reason := blockReason(resp); reason != "" {
			return "", fmt.Errorf("%w: モデルが生成を拒否しました (%s)", ErrNoImageReturned, reason)
		}
		return "", ErrNoImageReturned
	}

	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = asset.DefaultImageMIMEType
	}
	slog.InfoContext(ctx, "Gateway: Image generation completed", "mime_type", mimeType, "bytes", len(blob.Data), "duration", time.Since(start).Round(time.Millisecond))
	return asset.EncodeDataURL(mimeType, blob.Data), nil
}

// firstInlineImage は候補を順に走査し、最初のインライン画像を返します。
func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}
