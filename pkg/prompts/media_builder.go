package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-story-studio/pkg/domain"
)

// MediaPromptBuilder は、画像・動画生成用のプロンプトにスタイルと定型句を付与します。
type MediaPromptBuilder struct {
	qualitySuffix string // "High quality, detailed, 8k." 等の共通サフィックス
	videoPrefix   string // "Cinematic movement." 等の動画用プレフィックス
}

// NewMediaPromptBuilder は新しい MediaPromptBuilder を生成します。
func NewMediaPromptBuilder(qualitySuffix, videoPrefix string) *MediaPromptBuilder {
	return &MediaPromptBuilder{
		qualitySuffix: strings.TrimSpace(qualitySuffix),
		videoPrefix:   strings.TrimSpace(videoPrefix),
	}
}

// BuildImagePrompt は "{スタイル} style. {プロンプト}. {サフィックス}" の形に整えます。
func (pb *MediaPromptBuilder) BuildImagePrompt(prompt string, style domain.ArtStyle) string {
	body := strings.TrimRight(strings.TrimSpace(prompt), ".")

	parts := make([]string, 0, 3)
	if style != "" {
		parts = append(parts, fmt.Sprintf("%s style.", style))
	}
	if body != "" {
		parts = append(parts, body+".")
	}
	if pb.qualitySuffix != "" {
		parts = append(parts, pb.qualitySuffix)
	}
	return strings.Join(parts, " ")
}

// BuildVideoPrompt は動画生成用にカメラワークのプレフィックスを付けます。
func (pb *MediaPromptBuilder) BuildVideoPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if pb.videoPrefix == "" {
		return prompt
	}
	if prompt == "" {
		return pb.videoPrefix
	}
	return pb.videoPrefix + " " + prompt
}
