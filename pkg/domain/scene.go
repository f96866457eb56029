package domain

import (
	"fmt"
	"slices"
	"strings"
)

// GenerationState は画像・動画生成の進行状態です。
type GenerationState string

const (
	StateEmpty      GenerationState = "empty"
	StateGenerating GenerationState = "generating"
	StateComplete   GenerationState = "complete"
	StateError      GenerationState = "error"
)

// FailureReason は StateError に至った理由を区別します。
type FailureReason string

const (
	FailureNone      FailureReason = ""
	FailureFailed    FailureReason = "failed"
	FailureCancelled FailureReason = "cancelled"
	FailureTimeout   FailureReason = "timeout"
)

// ScriptLine はシーン内のセリフ1行なのだ。
type ScriptLine struct {
	Character string `json:"character"`
	Text      string `json:"text"`
}

// Scene は生成されたストーリーの1場面です。
// ID はバッチ内で一意で、更新時の唯一のキーになります。
type Scene struct {
	ID     int          `json:"id"`
	Prompt string       `json:"prompt"`
	Script []ScriptLine `json:"script"`

	ImageState   GenerationState `json:"image_state"`
	ImageURL     string          `json:"image_url,omitempty"`
	ImageFailure FailureReason   `json:"image_failure,omitempty"`

	VideoState   GenerationState `json:"video_state"`
	VideoURL     string          `json:"video_url,omitempty"`
	VideoFailure FailureReason   `json:"video_failure,omitempty"`
}

// NewScene は両方の状態を empty にした Scene を生成します。
func NewScene(id int, prompt string, script []ScriptLine) Scene {
	return Scene{
		ID:         id,
		Prompt:     prompt,
		Script:     slices.Clone(script),
		ImageState: StateEmpty,
		VideoState: StateEmpty,
	}
}

// HasImage は動画生成の前提となる画像参照があるかを返します。
func (s Scene) HasImage() bool {
	return s.ImageURL != ""
}

// Clone は Script スライスを共有しないコピーを返します。
func (s Scene) Clone() Scene {
	s.Script = slices.Clone(s.Script)
	return s
}

// ScriptText はセリフを "キャラクター: テキスト" 形式の複数行にまとめます。
func (s Scene) ScriptText() string {
	lines := make([]string, 0, len(s.Script))
	for _, l := range s.Script {
		lines = append(lines, fmt.Sprintf("%s: %s", l.Character, l.Text))
	}
	return strings.Join(lines, "\n")
}

// DownloadName は画像保存時のファイル名です。
func (s Scene) DownloadName(ext string) string {
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("scene-%d%s", s.ID, ext)
}

// SceneUpdate は Scene への部分更新です。nil のフィールドは変更しません。
type SceneUpdate struct {
	Prompt *string
	Script []ScriptLine

	ImageState   *GenerationState
	ImageURL     *string
	ImageFailure *FailureReason

	VideoState   *GenerationState
	VideoURL     *string
	VideoFailure *FailureReason
}

// Merge は更新を適用した新しい Scene を返します。ID は変更されません。
func (s Scene) Merge(u SceneUpdate) Scene {
	out := s.Clone()
	if u.Prompt != nil {
		out.Prompt = *u.Prompt
	}
	if u.Script != nil {
		out.Script = slices.Clone(u.Script)
	}
	if u.ImageState != nil {
		out.ImageState = *u.ImageState
	}
	if u.ImageURL != nil {
		out.ImageURL = *u.ImageURL
	}
	if u.ImageFailure != nil {
		out.ImageFailure = *u.ImageFailure
	}
	if u.VideoState != nil {
		out.VideoState = *u.VideoState
	}
	if u.VideoURL != nil {
		out.VideoURL = *u.VideoURL
	}
	if u.VideoFailure != nil {
		out.VideoFailure = *u.VideoFailure
	}
	return out
}
