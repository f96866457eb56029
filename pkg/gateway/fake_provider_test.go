package gateway

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shouni/go-story-studio/pkg/config"
)

type contentCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type videoCall struct {
	model  string
	prompt string
	image  *genai.Image
	config *genai.GenerateVideosConfig
}

// fakeProvider はリモート API を模倣するテスト用の Provider なのだ。
type fakeProvider struct {
	mu sync.Mutex

	contentCalls []contentCall
	contentResp  *genai.GenerateContentResponse
	contentErr   error

	videoCalls  []videoCall
	videoOp     *genai.GenerateVideosOperation
	videoErr    error
	polls       int
	pollFn      func(n int, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	downloads   int
	download    []byte
	downloadErr error

	// blockSubmit と blockDownload は ctx が終わるまで応答しない通信を模倣します。
	blockSubmit   bool
	blockDownload bool

	chatModel   string
	chatHistory []*genai.Content
	chatConfig  *genai.GenerateContentConfig
	chatMessage string
	chatChunks  []string
	chatErr     error
}

func (f *fakeProvider) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentCalls = append(f.contentCalls, contentCall{model: model, contents: contents, config: config})
	return f.contentResp, f.contentErr
}

func (f *fakeProvider) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, videoCall{model: model, prompt: prompt, image: image, config: config})
	op, err, block := f.videoOp, f.videoErr, f.blockSubmit
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return op, err
}

func (f *fakeProvider) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	f.polls++
	n, fn := f.polls, f.pollFn
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return op, nil
	}
	return fn(n, op)
}

func (f *fakeProvider) DownloadVideo(ctx context.Context, _ *genai.Video) ([]byte, error) {
	f.mu.Lock()
	f.downloads++
	data, err, block := f.download, f.downloadErr, f.blockDownload
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return data, err
}

func (f *fakeProvider) StreamChat(_ context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content, message string) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.mu.Lock()
	f.chatModel, f.chatConfig, f.chatHistory, f.chatMessage = model, config, history, message
	chunks, chatErr := f.chatChunks, f.chatErr
	f.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(textResponse(c), nil) {
				return
			}
		}
		if chatErr != nil {
			yield(nil, chatErr)
		}
	}
}

// mockCredentialProvider は testify/mock による CredentialProvider です。
type mockCredentialProvider struct {
	mock.Mock
}

func (m *mockCredentialProvider) Resolve(ctx context.Context) (Credential, error) {
	args := m.Called(ctx)
	return args.Get(0).(Credential), args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.MaxPollAttempts = 5
	cfg.VideoTimeout = 2 * time.Second
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func newTestGateway(t *testing.T, fp *fakeProvider) *Gateway {
	t.Helper()
	g, err := New(Args{
		Config:      testConfig(),
		Credentials: StaticCredential{APIKey: "test-key"},
		Connect: func(context.Context, Credential) (Provider, error) {
			return fp, nil
		},
	})
	require.NoError(t, err)
	return g
}

// contentText はリクエストに含まれるテキストをすべて連結します。
func contentText(contents ...*genai.Content) string {
	var s string
	for _, c := range contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			s += p.Text + "\n"
		}
	}
	return s
}
