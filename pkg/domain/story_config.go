package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// AspectRatio は生成する画像・動画の縦横比です。
type AspectRatio string

const (
	AspectSquare   AspectRatio = "1:1"
	AspectWide     AspectRatio = "16:9"
	AspectPortrait AspectRatio = "9:16"
	AspectStandard AspectRatio = "4:3"
	AspectCinema   AspectRatio = "21:9"
)

// Resolution は画像生成の解像度指定です。
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// ArtStyle はストーリー全体のビジュアルスタイルなのだ。
type ArtStyle string

const (
	StyleCinematic      ArtStyle = "Cinematic"
	StyleAnime          ArtStyle = "Anime"
	Style3DAnimation    ArtStyle = "3D Animation"
	StyleWatercolor     ArtStyle = "Watercolor"
	StylePhotorealistic ArtStyle = "Photorealistic"
	StyleCyberpunk      ArtStyle = "Cyberpunk"
)

const (
	MinSceneCount     = 3
	MaxSceneCount     = 10
	DefaultSceneCount = 5
	DefaultLanguage   = "English"
	DefaultCountry    = "USA"
)

var (
	AspectRatios       = []AspectRatio{AspectSquare, AspectWide, AspectPortrait, AspectStandard, AspectCinema}
	Resolutions        = []Resolution{Resolution1K, Resolution2K, Resolution4K}
	ArtStyles          = []ArtStyle{StyleCinematic, StyleAnime, Style3DAnimation, StyleWatercolor, StylePhotorealistic, StyleCyberpunk}
	SupportedLanguages = []string{"English", "Spanish", "French", "Japanese", "German"}
)

var (
	ErrPromptRequired         = errors.New("ストーリーのプロンプトが空です")
	ErrUnsupportedAspectRatio = errors.New("未対応のアスペクト比です")
	ErrUnsupportedResolution  = errors.New("未対応の解像度です")
	ErrUnsupportedArtStyle    = errors.New("未対応のアートスタイルです")
)

// StoryConfig は1回の生成リクエストを構成するパラメータ一式です。
// 値として各ゲートウェイ呼び出しに渡され、呼び出し側で変更されることはありません。
type StoryConfig struct {
	Prompt      string      `json:"prompt"`
	Language    string      `json:"language"`
	Country     string      `json:"country"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
	Resolution  Resolution  `json:"resolution"`
	ArtStyle    ArtStyle    `json:"art_style"`
	SceneCount  int         `json:"scene_count"`
	// InfluencerDescription はキャラクターの一貫性を保つための説明文。
	// 空でなければ全シーンのビジュアルプロンプトにそのまま埋め込まれます。
	InfluencerDescription string `json:"influencer_description,omitempty"`
}

// DefaultStoryConfig はフォームの初期値に相当する設定を返すのだ。
func DefaultStoryConfig() StoryConfig {
	return StoryConfig{
		Language:    DefaultLanguage,
		Country:     DefaultCountry,
		AspectRatio: AspectWide,
		Resolution:  Resolution1K,
		ArtStyle:    StyleCinematic,
		SceneCount:  DefaultSceneCount,
	}
}

// CanGenerate はプロンプトが入力済みで生成を開始できるかを返します。
func (c StoryConfig) CanGenerate() bool {
	return strings.TrimSpace(c.Prompt) != ""
}

// HasInfluencer はキャラクター説明が指定されているかを返します。
func (c StoryConfig) HasInfluencer() bool {
	return strings.TrimSpace(c.InfluencerDescription) != ""
}

// Normalize は空のフィールドをデフォルトで補い、シーン数を許容範囲に丸めたコピーを返します。
func (c StoryConfig) Normalize() StoryConfig {
	def := DefaultStoryConfig()
	if strings.TrimSpace(c.Language) == "" {
		c.Language = def.Language
	}
	if strings.TrimSpace(c.Country) == "" {
		c.Country = def.Country
	}
	if c.AspectRatio == "" {
		c.AspectRatio = def.AspectRatio
	}
	if c.Resolution == "" {
		c.Resolution = def.Resolution
	}
	if c.ArtStyle == "" {
		c.ArtStyle = def.ArtStyle
	}
	c.SceneCount = ClampSceneCount(c.SceneCount)
	return c
}

// Validate は列挙値と必須項目をチェックします。
// シーン数は Normalize で丸められる前提なので、ここでは範囲外をエラーにします。
func (c StoryConfig) Validate() error {
	if !c.CanGenerate() {
		return ErrPromptRequired
	}
	if !slices.Contains(AspectRatios, c.AspectRatio) {
		return fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, c.AspectRatio)
	}
	if !slices.Contains(Resolutions, c.Resolution) {
		return fmt.Errorf("%w: %q", ErrUnsupportedResolution, c.Resolution)
	}
	if !slices.Contains(ArtStyles, c.ArtStyle) {
		return fmt.Errorf("%w: %q", ErrUnsupportedArtStyle, c.ArtStyle)
	}
	if c.SceneCount < MinSceneCount || c.SceneCount > MaxSceneCount {
		return fmt.Errorf("シーン数は %d〜%d の範囲で指定してください (指定値: %d)", MinSceneCount, MaxSceneCount, c.SceneCount)
	}
	return nil
}

// ClampSceneCount はシーン数を 3〜10 に収めます。0 以下はデフォルト値として扱います。
func ClampSceneCount(n int) int {
	switch {
	case n <= 0:
		return DefaultSceneCount
	case n < MinSceneCount:
		return MinSceneCount
	case n > MaxSceneCount:
		return MaxSceneCount
	default:
		return n
	}
}
