package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/go-story-studio/pkg/asset"
	"github.com/shouni/go-story-studio/pkg/domain"
)

const (
	defaultStoryboardName = "storyboard.md"
	defaultNarrationName  = "Narrator"
)

// OutputWriter は生成物を保存先に書き出すためのインターフェースです。
type OutputWriter interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

// MediaResolver は media:// 参照を実データに解決します。*asset.Store がこれを満たします。
type MediaResolver interface {
	Get(ref string) (asset.Asset, error)
}

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理で書き出したファイルの一覧です。
type PublishResult struct {
	ScenesPath     string
	StoryboardPath string
	ImagePaths     []string
	VideoPaths     []string
}

// manifest は scenes.json の中身です。メディア本体の代わりにファイル名を持ちます。
type manifest struct {
	Config domain.StoryConfig `json:"config"`
	Scenes []manifestScene    `json:"scenes"`
}

type manifestScene struct {
	ID     int                 `json:"id"`
	Prompt string              `json:"prompt"`
	Script []domain.ScriptLine `json:"script"`
	Image  string              `json:"image,omitempty"`
	Video  string              `json:"video,omitempty"`
}

// ScenePublisher は生成したシーン群とメディアをまとめて保存します。
type ScenePublisher struct {
	writer OutputWriter
	media  MediaResolver
}

// NewScenePublisher は ScenePublisher を生成します。media が nil の場合、media:// 参照の動画は保存しません。
func NewScenePublisher(writer OutputWriter, media MediaResolver) *ScenePublisher {
	return &ScenePublisher{
		writer: writer,
		media:  media,
	}
}

// Publish は画像・動画・scenes.json・絵コンテ Markdown を書き出し、保存したパスを返すのだ！
// 個々のメディアが解決できない場合は警告を残して次のシーンに進みます。
func (p *ScenePublisher) Publish(ctx context.Context, cfg domain.StoryConfig, scenes []domain.Scene, opts Options) (PublishResult, error) {
	result := PublishResult{}
	entries := make([]manifestScene, 0, len(scenes))

	for _, s := range scenes {
		entry := manifestScene{ID: s.ID, Prompt: s.Prompt, Script: s.Script}

		if s.HasImage() {
			name, err := p.saveMedia(ctx, s, s.ImageURL, asset.DefaultImageMIMEType, ".png", opts.OutputDir)
			if err != nil {
				slog.WarnContext(ctx, "画像の保存をスキップします", "scene_id", s.ID, "error", err)
			} else {
				entry.Image = name
				result.ImagePaths = append(result.ImagePaths, filepath.Join(opts.OutputDir, name))
			}
		}

		if s.VideoState == domain.StateComplete && s.VideoURL != "" {
			name, err := p.saveMedia(ctx, s, s.VideoURL, asset.DefaultVideoMIMEType, ".mp4", opts.OutputDir)
			if err != nil {
				slog.WarnContext(ctx, "動画の保存をスキップします", "scene_id", s.ID, "error", err)
			} else {
				entry.Video = name
				result.VideoPaths = append(result.VideoPaths, filepath.Join(opts.OutputDir, name))
			}
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(manifest{Config: cfg, Scenes: entries}, "", "  ")
	if err != nil {
		return result, fmt.Errorf("scenes.json のエンコードに失敗しました: %w", err)
	}
	result.ScenesPath = filepath.Join(opts.OutputDir, asset.DefaultScenesFileName)
	if err := p.writer.Write(ctx, result.ScenesPath, bytes.NewReader(data), "application/json"); err != nil {
		return result, fmt.Errorf("scenes.json の書き込みに失敗しました: %w", err)
	}

	result.StoryboardPath = filepath.Join(opts.OutputDir, defaultStoryboardName)
	content := buildStoryboard(cfg, entries)
	if err := p.writer.Write(ctx, result.StoryboardPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "Publish completed",
		"dir", opts.OutputDir, "images", len(result.ImagePaths), "videos", len(result.VideoPaths))
	return result, nil
}

// saveMedia は data URL または media:// 参照を解決して保存し、ファイル名を返します。
func (p *ScenePublisher) saveMedia(ctx context.Context, s domain.Scene, ref, fallbackMIME, fallbackExt, dir string) (string, error) {
	var (
		a   asset.Asset
		err error
	)
	switch {
	case asset.IsReference(ref):
		if p.media == nil {
			return "", fmt.Errorf("メディアストアが設定されていません: %s", ref)
		}
		a, err = p.media.Get(ref)
	default:
		a, err = asset.DecodeDataURL(ref)
	}
	if err != nil {
		return "", err
	}

	mimeType := a.MIMEType
	if mimeType == "" {
		mimeType = fallbackMIME
	}
	name := s.DownloadName(asset.ExtensionFor(mimeType, fallbackExt))
	if err := p.writer.Write(ctx, filepath.Join(dir, name), bytes.NewReader(a.Data), mimeType); err != nil {
		return "", fmt.Errorf("%s の書き込みに失敗しました: %w", name, err)
	}
	return name, nil
}

// buildStoryboard はシーンごとのプロンプトと台本を Markdown にまとめます。
func buildStoryboard(cfg domain.StoryConfig, scenes []manifestScene) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", cfg.Prompt))
	sb.WriteString(fmt.Sprintf("- style: %s\n- aspect: %s\n- language: %s\n\n", cfg.ArtStyle, cfg.AspectRatio, cfg.Language))

	for _, s := range scenes {
		sb.WriteString(fmt.Sprintf("## Scene %d\n\n", s.ID))
		if s.Image != "" {
			sb.WriteString(fmt.Sprintf("![scene %d](%s)\n\n", s.ID, s.Image))
		}
		sb.WriteString(fmt.Sprintf("> %s\n\n", strings.TrimSpace(s.Prompt)))
		for _, line := range s.Script {
			speaker := line.Character
			if speaker == "" {
				speaker = defaultNarrationName
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", speaker, strings.TrimSpace(line.Text)))
		}
		if s.Video != "" {
			sb.WriteString(fmt.Sprintf("\n[video](%s)\n", s.Video))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// LocalWriter はローカルファイルシステムに書き出す OutputWriter です。
type LocalWriter struct{}

func (LocalWriter) Write(_ context.Context, path string, r io.Reader, _ string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
