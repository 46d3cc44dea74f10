package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"slack-roaster/internal/domain"
)

const (
	DefaultTextModelID  = "anthropic.claude-v2:1"
	DefaultImageModelID = "stability.stable-diffusion-xl-v1"

	titanImagePrefix     = "amazon.titan-image"
	anthropicVersion     = "bedrock-2023-05-31"
	contentTypeJSON      = "application/json"
	stabilityFiltered    = "CONTENT_FILTERED"
	defaultMaxTokens     = 300
	defaultTemperature   = 0.7
	defaultTopP          = 0.9
	defaultImageSize     = 1024
	defaultTitanCfgScale = 8.0
)

// ErrRefused is returned when a content filter blocked the prompt or the output.
var ErrRefused = domain.ErrRefused

// bedrockAPI is the minimal Bedrock runtime interface required by Client.
// *bedrockruntime.Client satisfies this interface.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client renders prompts into the request formats of the configured Bedrock
// models and decodes their responses.
type Client struct {
	api          bedrockAPI
	textModelID  string
	imageModelID string
	maxTokens    int
}

type Option func(*Client)

func WithTextModel(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.textModelID = id
		}
	}
}

func WithImageModel(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.imageModelID = id
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// New creates a Client. Model ids default to Claude v2.1 and SDXL.
func New(api bedrockAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	c := &Client{
		api:          api,
		textModelID:  DefaultTextModelID,
		imageModelID: DefaultImageModelID,
		maxTokens:    defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// claude v2 text completions request.
type completionRequest struct {
	Prompt            string  `json:"prompt"`
	MaxTokensToSample int     `json:"max_tokens_to_sample"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
}

type completionResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
}

// claude 3+ messages request.
type messagesRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	TopP             float64          `json:"top_p"`
	Messages         []messageContent `json:"messages"`
}

type messageContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityResponse struct {
	Result    string `json:"result"`
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

type titanRequest struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     titanTextToImage      `json:"textToImageParams"`
	ImageGenerationConfig titanGenerationConfig `json:"imageGenerationConfig"`
}

type titanTextToImage struct {
	Text string `json:"text"`
}

type titanGenerationConfig struct {
	NumberOfImages int     `json:"numberOfImages"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	CfgScale       float64 `json:"cfgScale"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error"`
}

// GenerateText runs the prompt against the text model and returns the trimmed
// completion.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("bedrock: prompt must not be empty")
	}

	if usesMessagesAPI(c.textModelID) {
		raw, err := c.invoke(ctx, c.textModelID, messagesRequest{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        c.maxTokens,
			Temperature:      defaultTemperature,
			TopP:             defaultTopP,
			Messages:         []messageContent{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		var out messagesResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("bedrock: decode messages response: %w", err)
		}
		var b strings.Builder
		for _, part := range out.Content {
			if part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		return strings.TrimSpace(b.String()), nil
	}

	raw, err := c.invoke(ctx, c.textModelID, completionRequest{
		Prompt:            "\n\nHuman:" + prompt + "\n\nAssistant:",
		MaxTokensToSample: c.maxTokens,
		Temperature:       defaultTemperature,
		TopP:              defaultTopP,
	})
	if err != nil {
		return "", err
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("bedrock: decode completion response: %w", err)
	}
	return strings.TrimSpace(out.Completion), nil
}

// GenerateImage returns the PNG bytes of a single generated image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("bedrock: prompt must not be empty")
	}
	if strings.HasPrefix(c.imageModelID, titanImagePrefix) {
		return c.generateTitanImage(ctx, prompt)
	}
	return c.generateStabilityImage(ctx, prompt)
}

func (c *Client) generateStabilityImage(ctx context.Context, prompt string) ([]byte, error) {
	raw, err := c.invoke(ctx, c.imageModelID, stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: prompt, Weight: 1.0}},
	})
	if err != nil {
		return nil, err
	}
	var out stabilityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bedrock: decode stability response: %w", err)
	}
	if len(out.Artifacts) == 0 {
		return nil, fmt.Errorf("bedrock: no artifacts in stability response (result=%q)", out.Result)
	}
	artifact := out.Artifacts[0]
	if artifact.FinishReason == stabilityFiltered {
		return nil, ErrRefused
	}
	return decodeImage(artifact.Base64)
}

func (c *Client) generateTitanImage(ctx context.Context, prompt string) ([]byte, error) {
	raw, err := c.invoke(ctx, c.imageModelID, titanRequest{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: titanTextToImage{Text: prompt},
		ImageGenerationConfig: titanGenerationConfig{
			NumberOfImages: 1,
			Height:         defaultImageSize,
			Width:          defaultImageSize,
			CfgScale:       defaultTitanCfgScale,
		},
	})
	if err != nil {
		return nil, err
	}
	var out titanResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bedrock: decode titan response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, out.Error)
	}
	if len(out.Images) == 0 {
		return nil, errors.New("bedrock: no images in titan response")
	}
	return decodeImage(out.Images[0])
}

func (c *Client) invoke(ctx context.Context, modelID string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		Accept:      aws.String(contentTypeJSON),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		if isContentFilterError(err) {
			return nil, fmt.Errorf("%w: %v", ErrRefused, err)
		}
		return nil, fmt.Errorf("bedrock: invoke model %q: %w", modelID, err)
	}
	if out == nil || len(out.Body) == 0 {
		return nil, fmt.Errorf("bedrock: empty response from %q", modelID)
	}
	return out.Body, nil
}

func decodeImage(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, errors.New("bedrock: empty image payload")
	}
	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("bedrock: decode image: %w", err)
	}
	return img, nil
}

func usesMessagesAPI(modelID string) bool {
	return strings.Contains(modelID, "claude-3") ||
		strings.Contains(modelID, "claude-sonnet") ||
		strings.Contains(modelID, "claude-haiku") ||
		strings.Contains(modelID, "claude-opus")
}

// Titan rejects filtered prompts with a ValidationException instead of a
// response field.
func isContentFilterError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "content filters") || strings.Contains(msg, "blocked by")
}
