package domain

import "time"

// Role はチャットメッセージの発言者です。
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage はチャット履歴の1件です。
// モデル側のメッセージは空で作成され、ストリームの断片が届くたびに末尾へ追記されます。
type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurn はゲートウェイへ渡す履歴の1要素なのだ。タイムスタンプは送りません。
type ChatTurn struct {
	Role Role
	Text string
}
