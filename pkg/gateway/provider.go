package gateway

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// Provider はゲートウェイが利用するリモート生成 API の最小限の操作です。
// 本番では genai クライアントを、テストではフェイクを差し込みます。
type Provider interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	DownloadVideo(ctx context.Context, video *genai.Video) ([]byte, error)
	StreamChat(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content, message string) iter.Seq2[*genai.GenerateContentResponse, error]
}

// ProviderFactory は解決済みの資格情報から Provider を生成します。
type ProviderFactory func(ctx context.Context, cred Credential) (Provider, error)

// genaiProvider は google.golang.org/genai を使った Provider の実装なのだ。
type genaiProvider struct {
	client *genai.Client
}

// NewGenAIProvider は Gemini API バックエンドのクライアントを初期化します。
// 呼び出しのたびに最新の資格情報で生成するため、ProviderFactory としてそのまま使えます。
func NewGenAIProvider(ctx context.Context, cred Credential) (Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cred.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return &genaiProvider{client: client}, nil
}

func (p *genaiProvider) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return p.client.Models.GenerateContent(ctx, model, contents, config)
}

func (p *genaiProvider) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return p.client.Models.GenerateVideos(ctx, model, prompt, image, config)
}

func (p *genaiProvider) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return p.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (p *genaiProvider) DownloadVideo(ctx context.Context, video *genai.Video) ([]byte, error) {
	return p.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
}

func (p *genaiProvider) StreamChat(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content, message string) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		chat, err := p.client.Chats.Create(ctx, model, config, history)
		if err != nil {
			yield(nil, fmt.Errorf("チャットセッションの作成に失敗しました: %w", err))
			return
		}
		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if !yield(resp, err) || err != nil {
				return
			}
		}
	}
}
