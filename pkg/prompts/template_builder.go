package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/go-story-studio/pkg/domain"
)

// StoryPrompt は、ストーリー生成用のシステム指示とユーザープロンプトを構築する契約です。
type StoryPrompt interface {
	BuildStory(cfg domain.StoryConfig) (system string, user string, err error)
}

// TextPromptBuilder は埋め込みテンプレートを解析済みの状態で保持します。
type TextPromptBuilder struct {
	templates map[string]*template.Template
}

// NewTextPromptBuilder は TextPromptBuilder を初期化します。
func NewTextPromptBuilder() (*TextPromptBuilder, error) {
	parsedTemplates := make(map[string]*template.Template)
	for name, content := range allTemplates {
		if content == "" {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' (go:embed) の読み込みに失敗しました: 内容が空です", name)
		}

		tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
		if err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", name, err)
		}
		parsedTemplates[name] = tmpl
	}

	return &TextPromptBuilder{
		templates: parsedTemplates,
	}, nil
}

// Build は、指定された名前のテンプレートを実行します。
func (b *TextPromptBuilder) Build(name string, data TemplateData) (string, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("不明なテンプレートです: '%s'", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// BuildStory はストーリー生成用のシステム指示とユーザープロンプトを返します。
func (b *TextPromptBuilder) BuildStory(cfg domain.StoryConfig) (string, string, error) {
	data := NewTemplateData(cfg)

	system, err := b.Build(TemplateStorySystem, data)
	if err != nil {
		return "", "", err
	}
	user, err := b.Build(TemplateStoryUser, data)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}
