package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	body    string
	err     error
	lastIn  *bedrockruntime.InvokeModelInput
	invoked int
}

func (f *fakeRuntime) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastIn = in
	f.invoked++
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func (f *fakeRuntime) request(t *testing.T) map[string]any {
	t.Helper()
	var req map[string]any
	require.NoError(t, json.Unmarshal(f.lastIn.Body, &req))
	return req
}

func mustNew(t *testing.T, api bedrockAPI, opts ...Option) *Client {
	t.Helper()
	c, err := New(api, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_Defaults(t *testing.T) {
	c := mustNew(t, &fakeRuntime{}, WithTextModel(" "), WithImageModel(""))
	require.Equal(t, DefaultTextModelID, c.textModelID)
	require.Equal(t, DefaultImageModelID, c.imageModelID)
	require.Equal(t, defaultMaxTokens, c.maxTokens)
}

func TestGenerateText_ClaudeV2Format(t *testing.T) {
	api := &fakeRuntime{body: `{"completion":"  Hola, mundo 🔥  ","stop_reason":"stop_sequence"}`}
	c := mustNew(t, api)

	out, err := c.GenerateText(context.Background(), "Haz una broma")
	require.NoError(t, err)
	require.Equal(t, "Hola, mundo 🔥", out)

	require.Equal(t, DefaultTextModelID, *api.lastIn.ModelId)
	req := api.request(t)
	require.Equal(t, "\n\nHuman:Haz una broma\n\nAssistant:", req["prompt"])
	require.EqualValues(t, 300, req["max_tokens_to_sample"])
	require.EqualValues(t, 0.7, req["temperature"])
	require.EqualValues(t, 0.9, req["top_p"])
}

func TestGenerateText_MessagesFormat(t *testing.T) {
	api := &fakeRuntime{body: `{"content":[{"type":"text","text":"Hola "},{"type":"text","text":"otra vez"}]}`}
	c := mustNew(t, api, WithTextModel("anthropic.claude-3-haiku-20240307-v1:0"), WithMaxTokens(500))

	out, err := c.GenerateText(context.Background(), "Haz una broma")
	require.NoError(t, err)
	require.Equal(t, "Hola otra vez", out)

	req := api.request(t)
	require.Equal(t, anthropicVersion, req["anthropic_version"])
	require.EqualValues(t, 500, req["max_tokens"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, "Haz una broma", msgs[0].(map[string]any)["content"])
}

func TestGenerateText_EmptyPrompt(t *testing.T) {
	api := &fakeRuntime{}
	c := mustNew(t, api)
	_, err := c.GenerateText(context.Background(), " ")
	require.Error(t, err)
	require.Zero(t, api.invoked)
}

func TestGenerateText_InvokeError(t *testing.T) {
	c := mustNew(t, &fakeRuntime{err: errors.New("ThrottlingException: rate exceeded")})
	_, err := c.GenerateText(context.Background(), "hi")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRefused)
	require.Contains(t, err.Error(), "invoke model")
}

func TestGenerateText_MalformedResponse(t *testing.T) {
	c := mustNew(t, &fakeRuntime{body: `not-json`})
	_, err := c.GenerateText(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode completion response")
}

func TestGenerateImage_Stability(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	api := &fakeRuntime{body: `{"result":"success","artifacts":[{"base64":"` + base64.StdEncoding.EncodeToString(png) + `","finishReason":"SUCCESS"}]}`}
	c := mustNew(t, api)

	img, err := c.GenerateImage(context.Background(), " a cat in a hat ")
	require.NoError(t, err)
	require.Equal(t, png, img)

	require.Equal(t, DefaultImageModelID, *api.lastIn.ModelId)
	require.Equal(t, "application/json", *api.lastIn.Accept)
	req := api.request(t)
	prompts := req["text_prompts"].([]any)
	require.Equal(t, "a cat in a hat", prompts[0].(map[string]any)["text"])
	require.EqualValues(t, 1.0, prompts[0].(map[string]any)["weight"])
}

func TestGenerateImage_StabilityFiltered(t *testing.T) {
	api := &fakeRuntime{body: `{"result":"success","artifacts":[{"base64":"","finishReason":"CONTENT_FILTERED"}]}`}
	c := mustNew(t, api)

	_, err := c.GenerateImage(context.Background(), "something bad")
	require.ErrorIs(t, err, ErrRefused)
}

func TestGenerateImage_StabilityNoArtifacts(t *testing.T) {
	c := mustNew(t, &fakeRuntime{body: `{"result":"error","artifacts":[]}`})
	_, err := c.GenerateImage(context.Background(), "a cat")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no artifacts")
}

func TestGenerateImage_Titan(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 1}
	api := &fakeRuntime{body: `{"images":["` + base64.StdEncoding.EncodeToString(png) + `"],"error":""}`}
	c := mustNew(t, api, WithImageModel("amazon.titan-image-generator-v1"))

	img, err := c.GenerateImage(context.Background(), "a cat")
	require.NoError(t, err)
	require.Equal(t, png, img)

	req := api.request(t)
	require.Equal(t, "TEXT_IMAGE", req["taskType"])
	require.Equal(t, "a cat", req["textToImageParams"].(map[string]any)["text"])
	cfg := req["imageGenerationConfig"].(map[string]any)
	require.EqualValues(t, 1, cfg["numberOfImages"])
	require.EqualValues(t, 1024, cfg["width"])
}

func TestGenerateImage_TitanErrorField(t *testing.T) {
	c := mustNew(t, &fakeRuntime{body: `{"images":[],"error":"prompt blocked"}`}, WithImageModel("amazon.titan-image-generator-v2:0"))
	_, err := c.GenerateImage(context.Background(), "a cat")
	require.ErrorIs(t, err, ErrRefused)
}

func TestGenerateImage_ValidationContentFilterIsRefusal(t *testing.T) {
	c := mustNew(t, &fakeRuntime{err: errors.New("ValidationException: This request has been blocked by our content filters.")}, WithImageModel("amazon.titan-image-generator-v1"))
	_, err := c.GenerateImage(context.Background(), "a cat")
	require.ErrorIs(t, err, ErrRefused)
}

func TestGenerateImage_BadBase64(t *testing.T) {
	c := mustNew(t, &fakeRuntime{body: `{"artifacts":[{"base64":"%%%","finishReason":"SUCCESS"}]}`})
	_, err := c.GenerateImage(context.Background(), "a cat")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode image")
}

func TestGenerateImage_EmptyPrompt(t *testing.T) {
	api := &fakeRuntime{}
	c := mustNew(t, api)
	_, err := c.GenerateImage(context.Background(), "")
	require.Error(t, err)
	require.Zero(t, api.invoked)
}
