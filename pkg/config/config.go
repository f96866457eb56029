package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultStoryModel         = "gemini-3-pro-preview"
	DefaultImageModel         = "gemini-3-pro-image-preview"
	DefaultVideoModel         = "veo-3.1-fast-generate-preview"
	DefaultChatModel          = "gemini-3-pro-preview"
	DefaultVideoResolution    = "720p"
	DefaultChatThinkingBudget = int32(2048)
	DefaultImageQualitySuffix = "High quality, detailed, 8k."
	DefaultVideoPromptPrefix  = "Cinematic movement."
	DefaultPollInterval       = 5 * time.Second
	DefaultMaxPollAttempts    = 120
	DefaultVideoTimeout       = 10 * time.Minute
	DefaultRequestTimeout     = 2 * time.Minute
	DefaultRateInterval       = 2 * time.Second
	DefaultRateBurst          = 2
	DefaultMediaTTL           = 30 * time.Minute
)

// Config は Story Studio の各コンポーネントを動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings ---
	StoryModel string
	ImageModel string
	VideoModel string
	ChatModel  string

	// --- Generation Settings ---
	VideoResolution    string
	ChatThinkingBudget int32
	ImageQualitySuffix string
	VideoPromptPrefix  string

	// --- Video Polling ---
	PollInterval    time.Duration
	MaxPollAttempts int           // 負数なら回数の上限なし（VideoTimeout のみで打ち切る）
	VideoTimeout    time.Duration // ポーリング全体の壁時計上限

	// --- Timeout & Rate ---
	RequestTimeout time.Duration // 単発リクエスト（ストーリー・画像・動画の投入と取得）のタイムアウト
	RateInterval   time.Duration // 一括生成時のリクエスト間隔
	RateBurst      int

	// --- Media ---
	MediaTTL time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		StoryModel:         DefaultStoryModel,
		ImageModel:         DefaultImageModel,
		VideoModel:         DefaultVideoModel,
		ChatModel:          DefaultChatModel,
		VideoResolution:    DefaultVideoResolution,
		ChatThinkingBudget: DefaultChatThinkingBudget,
		ImageQualitySuffix: DefaultImageQualitySuffix,
		VideoPromptPrefix:  DefaultVideoPromptPrefix,
		PollInterval:       DefaultPollInterval,
		MaxPollAttempts:    DefaultMaxPollAttempts,
		VideoTimeout:       DefaultVideoTimeout,
		RequestTimeout:     DefaultRequestTimeout,
		RateInterval:       DefaultRateInterval,
		RateBurst:          DefaultRateBurst,
		MediaTTL:           DefaultMediaTTL,
	}
}

// WithDefaults はゼロ値のフィールドをデフォルトで埋めたコピーを返します。
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.StoryModel == "" {
		c.StoryModel = def.StoryModel
	}
	if c.ImageModel == "" {
		c.ImageModel = def.ImageModel
	}
	if c.VideoModel == "" {
		c.VideoModel = def.VideoModel
	}
	if c.ChatModel == "" {
		c.ChatModel = def.ChatModel
	}
	if c.VideoResolution == "" {
		c.VideoResolution = def.VideoResolution
	}
	if c.ChatThinkingBudget == 0 {
		c.ChatThinkingBudget = def.ChatThinkingBudget
	}
	if c.ImageQualitySuffix == "" {
		c.ImageQualitySuffix = def.ImageQualitySuffix
	}
	if c.VideoPromptPrefix == "" {
		c.VideoPromptPrefix = def.VideoPromptPrefix
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = def.MaxPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.VideoTimeout <= 0 {
		c.VideoTimeout = def.VideoTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.RateInterval <= 0 {
		c.RateInterval = def.RateInterval
	}
	if c.RateBurst <= 0 {
		c.RateBurst = def.RateBurst
	}
	if c.MediaTTL <= 0 {
		c.MediaTTL = def.MediaTTL
	}
	return c
}
