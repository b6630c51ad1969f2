package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	model     string
	contents  []*genai.Content
	config    *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.model, f.contents, f.config = model, contents, config
	var resp *genai.GenerateContentResponse
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func testClient(f *fakeModels) *Client {
	return newClient(f, Config{Model: "test-model", Temperature: 0.7, RetryDelayBase: time.Millisecond})
}

func TestGenerate(t *testing.T) {
	f := &fakeModels{responses: []*genai.GenerateContentResponse{
		textResponse(&genai.Part{Text: "第一組(冷門號碼組合): "}, &genai.Part{Text: "[1, 2, 3, 4, 5, 6] + 特別號: 7"}),
	}}

	text, err := testClient(f).Generate(context.Background(), "分析")
	require.NoError(t, err)
	assert.Equal(t, "第一組(冷門號碼組合): [1, 2, 3, 4, 5, 6] + 特別號: 7", text)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "test-model", f.model)
	require.Len(t, f.contents, 1)
	assert.Equal(t, "分析", f.contents[0].Parts[0].Text)
	require.NotNil(t, f.config.Temperature)
	assert.InDelta(t, 0.7, *f.config.Temperature, 1e-6)
}

func TestGenerateRetries(t *testing.T) {
	f := &fakeModels{
		responses: []*genai.GenerateContentResponse{nil, textResponse(), textResponse(&genai.Part{Text: "ok"})},
		errs:      []error{errors.New("503 unavailable")},
	}

	text, err := testClient(f).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, f.calls)
}

func TestGenerateEmptyResponse(t *testing.T) {
	f := &fakeModels{}

	_, err := testClient(f).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 3, f.calls)
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(&fakeModels{}).Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{"joins parts", textResponse(&genai.Part{Text: "a"}, nil, &genai.Part{Text: "b"}), "ab"},
		{"skips thoughts", textResponse(&genai.Part{Text: "thinking", Thought: true}, &genai.Part{Text: "answer"}), "answer"},
		{"trims", textResponse(&genai.Part{Text: "  answer\n"}), "answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	c := newClient(&fakeModels{}, Config{})
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, 3, c.maxRetries)
	assert.Nil(t, c.genConfig.Temperature)
}
