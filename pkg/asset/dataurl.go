package asset

import (
	"encoding/base64"
	"fmt"
	"mime"
	"regexp"
	"strings"
)

const (
	DefaultImageMIMEType = "image/png"
	DefaultVideoMIMEType = "video/mp4"
	// DefaultScenesFileName は生成されたシーン一覧を書き出す JSON のファイル名です。
	DefaultScenesFileName = "scenes.json"
)

// dataURLRegex は "data:<mime>;base64,<payload>" に一致します。
var dataURLRegex = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+);base64,(.*)$`)

// EncodeDataURL はバイト列を base64 の data URL に変換します。
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL は data URL から MIME タイプとバイト列を取り出します。
func DecodeDataURL(dataURL string) (Asset, error) {
	m := dataURLRegex.FindStringSubmatch(strings.TrimSpace(dataURL))
	if len(m) != 3 {
		return Asset{}, fmt.Errorf("data URL の形式ではありません (先頭: %q)", truncateString(dataURL, 32))
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return Asset{}, fmt.Errorf("data URL の base64 デコードに失敗しました: %w", err)
	}
	return Asset{Data: data, MIMEType: m[1]}, nil
}

// ExtensionFor は MIME タイプから拡張子を決めます。判別できない場合は fallback を返します。
func ExtensionFor(mimeType, fallback string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return fallback
	}
	return exts[0]
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
