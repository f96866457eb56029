package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/domain"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// rawScene はモデルが返すシーン1件の形です。必須項目の欠落を検出するためポインタで受けます。
type rawScene struct {
	VisualPrompt *string    `json:"visual_prompt"`
	ScriptLines  *[]rawLine `json:"script_lines"`
}

type rawLine struct {
	Character *string `json:"character"`
	Text      *string `json:"text"`
}

// storySchema はストーリー生成に要求するレスポンススキーマです。
func storySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"visual_prompt": {
					Type:        genai.TypeString,
					Description: "The prompt for the image generator",
				},
				"script_lines": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"character": {Type: genai.TypeString},
							"text":      {Type: genai.TypeString},
						},
						Required: []string{"character", "text"},
					},
				},
			},
			Required: []string{"visual_prompt", "script_lines"},
		},
	}
}

// GenerateStory は StoryConfig からシーン列を生成します。
// 返されるシーンは ID が 1 から連番で、画像・動画ともに empty 状態です。
func (g *Gateway) GenerateStory(ctx context.Context, cfg domain.StoryConfig) (scenes []domain.Scene, err error) {
	start := time.Now()
	defer func() { observe(opStory, start, err) }()

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	system, user, err := g.storyPrompt.BuildStory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: プロンプト生成に失敗: %w", ErrGenerationFailed, err)
	}

	p, err := g.provider(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	slog.InfoContext(ctx, "Gateway: Calling Gemini API for story", "model", g.cfg.StoryModel, "scene_count", cfg.SceneCount)
	resp, err := p.GenerateContent(ctx, g.cfg.StoryModel, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    storySchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if reason := blockReason(resp); reason != "" {
		return nil, fmt.Errorf("%w: モデルが生成を拒否しました (%s)", ErrGenerationFailed, reason)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: テキストが生成されませんでした", ErrGenerationFailed)
	}

	return parseScenes(text, cfg)
}

// parseScenes は AI 応答を検証し、ドメインの Scene 列に変換します。
func parseScenes(raw string, cfg domain.StoryConfig) ([]domain.Scene, error) {
	rawJSON := extractJSONArray(raw)

	var items []rawScene
	if err := json.Unmarshal([]byte(rawJSON), &items); err != nil {
		return nil, fmt.Errorf("%w: JSONの解析に失敗しました (応答抜粋: %q): %w", ErrMalformedResponse, truncateString(raw, 200), err)
	}
	if len(items) != cfg.SceneCount {
		return nil, fmt.Errorf("%w: シーン数が一致しません (期待: %d, 実際: %d)", ErrMalformedResponse, cfg.SceneCount, len(items))
	}

	influencer := strings.TrimSpace(cfg.InfluencerDescription)
	scenes := make([]domain.Scene, 0, len(items))
	for i, item := range items {
		if err := item.validate(); err != nil {
			return nil, fmt.Errorf("%w: シーン %d: %w", ErrMalformedResponse, i+1, err)
		}

		prompt := strings.TrimSpace(*item.VisualPrompt)
		if influencer != "" && !strings.Contains(prompt, influencer) {
			prompt = influencer + ". " + prompt
		}

		script := make([]domain.ScriptLine, 0, len(*item.ScriptLines))
		for _, l := range *item.ScriptLines {
			script = append(script, domain.ScriptLine{Character: *l.Character, Text: *l.Text})
		}
		scenes = append(scenes, domain.NewScene(i+1, prompt, script))
	}
	return scenes, nil
}

func (s rawScene) validate() error {
	if s.VisualPrompt == nil || strings.TrimSpace(*s.VisualPrompt) == "" {
		return errors.New("visual_prompt がありません")
	}
	if s.ScriptLines == nil {
		return errors.New("script_lines がありません")
	}
	for j, l := range *s.ScriptLines {
		if l.Character == nil || l.Text == nil {
			return fmt.Errorf("script_lines[%d] に character または text がありません", j)
		}
	}
	return nil
}

// extractJSONArray はコードフェンスや前後の文章を取り除き、JSON 配列部分を取り出します。
func extractJSONArray(raw string) string {
	raw = strings.TrimSpace(raw)

	if matches := jsonBlockRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1]
	}
	first := strings.Index(raw, "[")
	last := strings.LastIndex(raw, "]")
	if first != -1 && last > first {
		return raw[first : last+1]
	}
	return raw
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
