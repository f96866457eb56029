package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/asset"
	"github.com/shouni/go-story-studio/pkg/config"
	"github.com/shouni/go-story-studio/pkg/prompts"
)

// Gateway はドメインのリクエストをリモート生成 API の呼び出しに変換する境界なのだ。
// 4つの操作はチャットを除いて互いに状態を持ちません。
type Gateway struct {
	cfg         config.Config
	credentials CredentialProvider
	connect     ProviderFactory
	store       *asset.Store
	storyPrompt prompts.StoryPrompt
	mediaPrompt *prompts.MediaPromptBuilder

	resolveGroup singleflight.Group
}

// Args は Gateway の依存関係です。nil のフィールドはデフォルト実装で補います。
type Args struct {
	Config      config.Config
	Credentials CredentialProvider
	Connect     ProviderFactory
	Store       *asset.Store
	StoryPrompt prompts.StoryPrompt
}

// New は Gateway を初期化します。
func New(args Args) (*Gateway, error) {
	if args.Credentials == nil {
		return nil, errors.New("CredentialProvider は必須です")
	}
	cfg := args.Config.WithDefaults()

	connect := args.Connect
	if connect == nil {
		connect = NewGenAIProvider
	}

	store := args.Store
	if store == nil {
		store = asset.NewStore(cfg.MediaTTL)
	}

	storyPrompt := args.StoryPrompt
	if storyPrompt == nil {
		pb, err := prompts.NewTextPromptBuilder()
		if err != nil {
			return nil, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
		}
		storyPrompt = pb
	}

	return &Gateway{
		cfg:         cfg,
		credentials: args.Credentials,
		connect:     connect,
		store:       store,
		storyPrompt: storyPrompt,
		mediaPrompt: prompts.NewMediaPromptBuilder(cfg.ImageQualitySuffix, cfg.VideoPromptPrefix),
	}, nil
}

// Store は動画参照を解決するためのメディアストアを返します。
func (g *Gateway) Store() *asset.Store {
	return g.store
}

// provider は資格情報を解決してから Provider を生成します。
// 同時に走る呼び出しの解決は1回にまとめますが、待機は各呼び出しの ctx に従います。
func (g *Gateway) provider(ctx context.Context) (Provider, error) {
	ch := g.resolveGroup.DoChan("credential", func() (any, error) {
		return g.credentials.Resolve(context.WithoutCancel(ctx))
	})

	var cred Credential
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationUnresolved, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationUnresolved, res.Err)
		}
		cred = res.Val.(Credential)
	}
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, fmt.Errorf("%w: API キーが空です", ErrAuthenticationUnresolved)
	}

	p, err := g.connect(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationUnresolved, err)
	}
	return p, nil
}

// responseText は最初の候補からテキストパートを連結します。思考パートは含めません。
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// blockReason はモデルが応答を拒否した場合にその理由を返します。
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	return string(resp.PromptFeedback.BlockReason)
}
