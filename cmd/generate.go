package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-story-studio/internal/config"
	"github.com/shouni/go-story-studio/internal/pipeline"
	"github.com/shouni/go-story-studio/pkg/domain"
)

// generateCmd は、ストーリーとシーンごとのメディアを生成して保存するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIにストーリーを書かせ、シーンの画像と動画を生成しますなのだ。",
	Long: `ストーリーのアイデアから指定した数のシーンを生成するのだ。
--images で全シーンの画像を、--videos で画像から動画まで生成するのだよ。
出力は scenes.json、storyboard.md、scene-<id>.png、scene-<id>.mp4 になるのだ。`,
	RunE: generateCommand,
}

func init() {
	def := domain.DefaultStoryConfig()
	flags := generateCmd.Flags()

	// --- ストーリー設定 ---
	flags.StringVarP(&opts.Prompt, "prompt", "p", "", "ストーリーのアイデアなのだ（必須）。")
	flags.StringVar(&opts.Language, "language", def.Language, "台本の言語なのだ。")
	flags.StringVar(&opts.Country, "country", def.Country, "物語の舞台となる国なのだ。")
	flags.StringVar(&opts.AspectRatio, "aspect", string(def.AspectRatio), "画像と動画のアスペクト比なのだ。")
	flags.StringVar(&opts.Resolution, "resolution", string(def.Resolution), "画像の解像度（1K, 2K, 4K）なのだ。")
	flags.StringVar(&opts.ArtStyle, "style", string(def.ArtStyle), "ビジュアルスタイルなのだ。")
	flags.IntVarP(&opts.SceneCount, "scenes", "n", def.SceneCount, "シーン数（3〜10 に丸められる）なのだ。")
	flags.StringVarP(&opts.Character, "character", "c", "", "全シーンで一貫させるキャラクターの外見説明なのだ。")

	// --- 生成工程・出力 ---
	flags.BoolVar(&opts.Images, "images", false, "全シーンの画像を生成するのだ。")
	flags.BoolVar(&opts.Videos, "videos", false, "画像に続けて全シーンの動画を生成するのだ。")
	flags.StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "生成物を保存するディレクトリなのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.Prompt == "" {
		return fmt.Errorf("ストーリーのアイデア（--prompt）を指定してほしいのだ")
	}

	// 2. 環境変数とフラグから基本設定を組み立てるのだ
	appCtx, err := loadAppContext(ctx)
	if err != nil {
		return err
	}

	lib := appCtx.Config.Library
	slog.Info("ストーリー生成パイプラインを起動するのだ！",
		"story_model", lib.StoryModel,
		"image_model", lib.ImageModel,
		"video_model", lib.VideoModel,
		"output", opts.OutputDir)

	// 3. パイプラインを実行するのだ
	if err := pipeline.Execute(ctx, appCtx); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
