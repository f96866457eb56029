package config

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-story-studio/pkg/config"
	"github.com/shouni/go-story-studio/pkg/domain"
)

// デフォルト値の定義なのだ
const (
	DefaultOutputDir = "output" // 生成物の保存先ディレクトリなのだ
	DefaultEnvFile   = ".env"
)

// Config はアプリケーション全体の環境設定を保持する構造体なのだ。
// APIキーはここでは持たず、呼び出しのたびに資格情報プロバイダが解決します。
type Config struct {
	Library config.Config

	Options GenerateOptions
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	// .env は任意なので、存在しなくてもエラーにはしないのだ
	if err := godotenv.Load(DefaultEnvFile); err == nil {
		slog.Debug(".env を読み込みました", "path", DefaultEnvFile)
	}
	return loadFromEnv()
}

func loadFromEnv() *Config {
	def := config.DefaultConfig()
	lib := config.Config{
		StoryModel:         envutil.GetEnv("GEMINI_MODEL", def.StoryModel),
		ImageModel:         envutil.GetEnv("IMAGE_GEMINI_MODEL", def.ImageModel),
		VideoModel:         envutil.GetEnv("VIDEO_MODEL", def.VideoModel),
		ChatModel:          envutil.GetEnv("CHAT_GEMINI_MODEL", def.ChatModel),
		VideoResolution:    envutil.GetEnv("VIDEO_RESOLUTION", def.VideoResolution),
		ChatThinkingBudget: def.ChatThinkingBudget,
		ImageQualitySuffix: envutil.GetEnv("IMAGE_PROMPT_SUFFIX", def.ImageQualitySuffix),
		VideoPromptPrefix:  envutil.GetEnv("VIDEO_PROMPT_PREFIX", def.VideoPromptPrefix),
		PollInterval:       envDuration("VIDEO_POLL_INTERVAL", def.PollInterval),
		MaxPollAttempts:    envInt("VIDEO_MAX_POLL_ATTEMPTS", def.MaxPollAttempts),
		VideoTimeout:       envDuration("VIDEO_TIMEOUT", def.VideoTimeout),
		RequestTimeout:     envDuration("REQUEST_TIMEOUT", def.RequestTimeout),
		RateInterval:       envDuration("RATE_INTERVAL", def.RateInterval),
		RateBurst:          envInt("RATE_BURST", def.RateBurst),
		MediaTTL:           envDuration("MEDIA_TTL", def.MediaTTL),
	}
	if budget := envInt("CHAT_THINKING_BUDGET", int(def.ChatThinkingBudget)); budget > 0 {
		lib.ChatThinkingBudget = int32(budget)
	}
	return &Config{Library: lib}
}

// ApplyOptions は CLI フラグで明示された値を設定に上書きするのだ。
// 空文字やゼロ値のフラグは環境変数の値を維持します。
func (c *Config) ApplyOptions(opts GenerateOptions) {
	c.Options = opts
	if opts.StoryModel != "" {
		c.Library.StoryModel = opts.StoryModel
	}
	if opts.ImageModel != "" {
		c.Library.ImageModel = opts.ImageModel
	}
	if opts.VideoModel != "" {
		c.Library.VideoModel = opts.VideoModel
	}
	if opts.ChatModel != "" {
		c.Library.ChatModel = opts.ChatModel
	}
	if opts.PollInterval > 0 {
		c.Library.PollInterval = opts.PollInterval
	}
	if opts.VideoTimeout > 0 {
		c.Library.VideoTimeout = opts.VideoTimeout
	}
}

// StoryConfig はフラグの値からストーリー生成設定を組み立てます。
func (c *Config) StoryConfig() domain.StoryConfig {
	o := c.Options
	return domain.StoryConfig{
		Prompt:                o.Prompt,
		Language:              o.Language,
		Country:               o.Country,
		AspectRatio:           domain.AspectRatio(o.AspectRatio),
		Resolution:            domain.Resolution(o.Resolution),
		ArtStyle:              domain.ArtStyle(o.ArtStyle),
		SceneCount:            o.SceneCount,
		InfluencerDescription: o.Character,
	}.Normalize()
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// ストーリー設定
	Prompt      string // --prompt
	Language    string // --language
	Country     string // --country
	AspectRatio string // --aspect
	Resolution  string // --resolution
	ArtStyle    string // --style
	SceneCount  int    // --scenes
	Character   string // --character

	// 生成工程
	Images    bool   // --images
	Videos    bool   // --videos
	OutputDir string // --output-dir

	// AI モデル・挙動設定
	StoryModel   string        // --model
	ImageModel   string        // --image-model
	VideoModel   string        // --video-model
	ChatModel    string        // --chat-model
	PollInterval time.Duration // --poll-interval
	VideoTimeout time.Duration // --video-timeout

	// 実行制御
	Verbose     bool   // --verbose
	MetricsAddr string // --metrics-addr
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("環境変数の値が不正なのでデフォルトを使います", "key", key, "value", raw, "error", err)
		return def
	}
	return d
}

func envInt(key string, def int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("環境変数の値が不正なのでデフォルトを使います", "key", key, "value", raw, "error", err)
		return def
	}
	return n
}
