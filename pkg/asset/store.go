package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	// ReferenceScheme はストア内メディアを指す参照のスキームです。
	ReferenceScheme = "media://"

	cacheCleanupInterval = 15 * time.Minute
)

// ErrAssetNotFound は参照に対応するメディアがない（期限切れを含む）ことを示します。
var ErrAssetNotFound = errors.New("メディアが見つかりません")

// Asset はメモリ上に保持される生成物のバイト列です。
type Asset struct {
	Data     []byte
	MIMEType string
}

// Store は生成された動画などをメモリ上に保持し、再生可能な参照を払い出します。
// 参照は TTL 経過後に自動で破棄されます。
type Store struct {
	cache *cache.Cache
}

// NewStore は TTL 付きの Store を生成します。
func NewStore(ttl time.Duration) *Store {
	return &Store{cache: cache.New(ttl, cacheCleanupInterval)}
}

// Put はメディアを保存し、"media://<uuid>" 形式の参照を返すのだ。
func (s *Store) Put(data []byte, mimeType string) string {
	ref := ReferenceScheme + uuid.NewString()
	s.cache.SetDefault(ref, Asset{Data: data, MIMEType: mimeType})
	return ref
}

// Get は参照からメディアを取り出します。
func (s *Store) Get(ref string) (Asset, error) {
	if !IsReference(ref) {
		return Asset{}, fmt.Errorf("不正なメディア参照です: %q", ref)
	}
	v, ok := s.cache.Get(ref)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, ref)
	}
	return v.(Asset), nil
}

// Release は参照を破棄します。存在しない参照は無視します。
func (s *Store) Release(ref string) {
	s.cache.Delete(ref)
}

// Len は保持中のメディア数です。
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// IsReference は文字列がストアの参照形式かを返します。
func IsReference(ref string) bool {
	return strings.HasPrefix(ref, ReferenceScheme)
}
