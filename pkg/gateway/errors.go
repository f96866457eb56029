package gateway

import "errors"

// ゲートウェイが返すエラーの分類です。呼び出し側は errors.Is で判定します。
var (
	ErrAuthenticationUnresolved       = errors.New("認証情報を解決できませんでした")
	ErrMalformedResponse              = errors.New("AIの応答が期待するスキーマに一致しません")
	ErrGenerationFailed               = errors.New("生成に失敗しました")
	ErrNoImageReturned                = errors.New("応答に画像が含まれていません")
	ErrNoVideoReturned                = errors.New("完了したジョブに動画が含まれていません")
	ErrVideoGenerationFailed          = errors.New("動画生成に失敗しました")
	ErrVideoGenerationTimeout   error = &timeoutError{msg: "動画生成がタイムアウトしました"}
	ErrChatFailed                     = errors.New("チャットの応答取得に失敗しました")

	errStreamConsumed = errors.New("ストリームは既に消費済みです")
)

// timeoutError は Timeout() を実装し、net.Error と同じ方法でタイムアウトを判定できるようにします。
type timeoutError struct {
	msg string
}

func (e *timeoutError) Error() string { return e.msg }
func (e *timeoutError) Timeout() bool { return true }
