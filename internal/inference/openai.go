package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/banshee-data/incident.report/internal/media"
)

// DefaultCaptionModel is the vision model used when none is configured.
const DefaultCaptionModel = "gpt-4o-mini"

const (
	captionMaxTokens = 120
	captionPrompt    = "Describe this traffic scene in one or two factual sentences. " +
		"Mention any collision, impact or damage you can see. Do not speculate about fault."
)

// OpenAICaptioner captions images with an OpenAI-compatible vision model.
type OpenAICaptioner struct {
	client *openai.Client
	model  string
}

// NewOpenAICaptioner builds a captioner. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAICaptioner(apiKey, baseURL, model string, hc *http.Client) *OpenAICaptioner {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	if model == "" {
		model = DefaultCaptionModel
	}
	return &OpenAICaptioner{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAICaptioner) Caption(ctx context.Context, img image.Image) (string, error) {
	data, err := media.EncodeJPEG(img)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: captionMaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    uri,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("create chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
