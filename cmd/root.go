package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shouni/go-story-studio/internal/builder"
	"github.com/shouni/go-story-studio/internal/config"
)

// opts は、全サブコマンドで共有するフラグの値なのだ。
var opts config.GenerateOptions

var rootCmd = &cobra.Command{
	Use:               "story-studio",
	Short:             "AIでストーリーを作り、シーンごとの画像と動画を生成するのだ。",
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- AIモデル・挙動設定 ---
	// 空のままなら環境変数、さらに無ければ組み込みのデフォルトが使われるのだ。
	rootCmd.PersistentFlags().StringVar(&opts.StoryModel, "model", "", "ストーリー生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", "", "画像生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.VideoModel, "video-model", "", "動画生成に使う Veo モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ChatModel, "chat-model", "", "チャットに使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.PollInterval, "poll-interval", 0, "動画生成の状態確認の間隔なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.VideoTimeout, "video-timeout", 0, "動画生成を待つ上限時間なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "デバッグログを出力するのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Prometheus の /metrics を公開するアドレス（例: :9090）なのだ。")
}

// preRunAppE は、コマンド実行前にロガーとメトリクスを準備するのだ。
// APIキーはここではチェックせず、各リクエストの直前に解決されるのだよ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if opts.MetricsAddr != "" {
		startMetricsServer(opts.MetricsAddr)
	}
	return nil
}

// startMetricsServer は /metrics を公開する HTTP サーバーをバックグラウンドで起動します。
func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		slog.Info("メトリクスサーバーを起動するのだ", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("メトリクスサーバーが停止しました", "error", err)
		}
	}()
}

// loadAppContext は、環境変数とフラグから設定を組み立てて AppContext を作るのだ。
func loadAppContext(ctx context.Context) (*builder.AppContext, error) {
	cfg := config.LoadConfig()
	cfg.ApplyOptions(opts)
	return builder.BuildAppContext(ctx, cfg, nil)
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	addAppFlags(rootCmd)
	rootCmd.AddCommand(generateCmd, chatCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
