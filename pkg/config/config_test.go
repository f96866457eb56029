package config

import (
	"testing"
	"time"
)

func TestWithDefaults(t *testing.T) {
	t.Run("ゼロ値はデフォルトで埋まるのだ", func(t *testing.T) {
		got := Config{}.WithDefaults()
		if got != DefaultConfig() {
			t.Errorf("期待: %+v, 実際: %+v", DefaultConfig(), got)
		}
	})

	t.Run("指定済みの値は維持される", func(t *testing.T) {
		got := Config{VideoModel: "veo-custom", PollInterval: time.Millisecond, MaxPollAttempts: -1}.WithDefaults()
		if got.VideoModel != "veo-custom" || got.PollInterval != time.Millisecond {
			t.Errorf("指定値が上書きされたのだ: %+v", got)
		}
		if got.MaxPollAttempts != -1 {
			t.Errorf("MaxPollAttempts は上限なし指定を維持するはずなのだ: %d", got.MaxPollAttempts)
		}
	})
}
