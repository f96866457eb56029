package prompts

import (
	_ "embed"

	"github.com/shouni/go-story-studio/pkg/domain"
)

const (
	TemplateStorySystem = "story_system"
	TemplateStoryUser   = "story_user"
)

// TemplateData はストーリー生成テンプレートに渡すデータ構造です。
type TemplateData struct {
	Prompt                string
	Language              string
	Country               string
	ArtStyle              string
	SceneCount            int
	InfluencerDescription string
}

// NewTemplateData は StoryConfig からテンプレート用のデータを組み立てるのだ。
func NewTemplateData(cfg domain.StoryConfig) TemplateData {
	return TemplateData{
		Prompt:                cfg.Prompt,
		Language:              cfg.Language,
		Country:               cfg.Country,
		ArtStyle:              string(cfg.ArtStyle),
		SceneCount:            cfg.SceneCount,
		InfluencerDescription: cfg.InfluencerDescription,
	}
}

var (
	//go:embed story_system.md
	StorySystemPrompt string
	//go:embed story_user.md
	StoryUserPrompt string
)

// allTemplates はテンプレート名とテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[string]string{
	TemplateStorySystem: StorySystemPrompt,
	TemplateStoryUser:   StoryUserPrompt,
}
