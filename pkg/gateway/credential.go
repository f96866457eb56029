package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shouni/go-utils/envutil"
)

// DefaultAPIKeyEnv は API キーを読み取る環境変数名です。
var DefaultAPIKeyEnv = []string{"GEMINI_API_KEY", "API_KEY"}

// Credential はリモートサービスへの認証に使う資格情報です。
type Credential struct {
	APIKey string
}

// CredentialProvider はゲートウェイ呼び出しの直前に毎回資格情報を解決します。
// 解決はブロックしてもよく（ユーザーにキー選択を促す等）、ctx のキャンセルに従う必要があります。
type CredentialProvider interface {
	Resolve(ctx context.Context) (Credential, error)
}

// CredentialFunc は関数を CredentialProvider として扱うためのアダプタです。
type CredentialFunc func(ctx context.Context) (Credential, error)

func (f CredentialFunc) Resolve(ctx context.Context) (Credential, error) { return f(ctx) }

// StaticCredential は固定のキーを返します。テストや埋め込み用途向けなのだ。
type StaticCredential Credential

func (c StaticCredential) Resolve(context.Context) (Credential, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return Credential{}, errors.New("API キーが空です")
	}
	return Credential(c), nil
}

// EnvCredentialProvider は呼び出しのたびに環境変数を読み直します。
// セッションを再起動せずにキーの変更を次の呼び出しから反映できます。
type EnvCredentialProvider struct {
	Keys []string
}

// NewEnvCredentialProvider は keys を優先順に参照するプロバイダを生成します。
func NewEnvCredentialProvider(keys ...string) *EnvCredentialProvider {
	if len(keys) == 0 {
		keys = DefaultAPIKeyEnv
	}
	return &EnvCredentialProvider{Keys: keys}
}

func (p *EnvCredentialProvider) Resolve(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	for _, key := range p.Keys {
		if v := strings.TrimSpace(envutil.GetEnv(key, "")); v != "" {
			return Credential{APIKey: v}, nil
		}
	}
	return Credential{}, fmt.Errorf("環境変数 %s のいずれも設定されていません", strings.Join(p.Keys, ", "))
}
