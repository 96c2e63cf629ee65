package gemini_provider

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeModels struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	resp        *genai.GenerateContentResponse
	err         error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestCompleteSendsPromptVerbatim(t *testing.T) {
	t.Parallel()
	f := &fakeModels{resp: textResponse("Markets rallied.")}
	c := newClient(f, "gemini-1.5-flash", genai.Ptr(0.3), 512, nil)

	got, err := c.Complete(context.Background(), "User: what happened?\nAnswer:")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Markets rallied." {
		t.Fatalf("answer = %q", got)
	}
	if f.gotModel != "gemini-1.5-flash" {
		t.Fatalf("model = %q", f.gotModel)
	}
	if len(f.gotContents) != 1 || len(f.gotContents[0].Parts) != 1 || f.gotContents[0].Parts[0].Text != "User: what happened?\nAnswer:" {
		t.Fatalf("contents = %+v", f.gotContents)
	}
	if f.gotConfig == nil || f.gotConfig.Temperature == nil || *f.gotConfig.Temperature != float32(0.3) || f.gotConfig.MaxOutputTokens != 512 {
		t.Fatalf("config = %+v", f.gotConfig)
	}
}

func TestCompleteDefaultsLeaveConfigNil(t *testing.T) {
	t.Parallel()
	f := &fakeModels{resp: textResponse("ok")}
	if _, err := newClient(f, "m", nil, 0, nil).Complete(context.Background(), "p"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if f.gotConfig != nil {
		t.Fatalf("config = %+v, want nil", f.gotConfig)
	}
}

func TestCompleteKeepsExplicitZeroTemperature(t *testing.T) {
	t.Parallel()
	f := &fakeModels{resp: textResponse("ok")}
	if _, err := newClient(f, "m", genai.Ptr(0.0), 0, nil).Complete(context.Background(), "p"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if f.gotConfig == nil || f.gotConfig.Temperature == nil || *f.gotConfig.Temperature != 0 {
		t.Fatalf("config = %+v, want temperature 0", f.gotConfig)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Parallel()
	quota := errors.New("quota exceeded")
	if _, err := newClient(&fakeModels{err: quota}, "m", nil, 0, nil).Complete(context.Background(), "p"); !errors.Is(err, quota) {
		t.Fatalf("err = %v, want wrapped quota error", err)
	}
	empty := &genai.GenerateContentResponse{}
	if _, err := newClient(&fakeModels{resp: empty}, "m", nil, 0, nil).Complete(context.Background(), "p"); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("err = %v, want ErrEmptyCompletion", err)
	}
}
