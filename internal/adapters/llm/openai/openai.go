package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/adapters"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
)

type API struct {
	client     *openai.Client
	model      string
	parameters *llm.GenerationParameters
	logger     *log.Entry
}

var _ adapters.Classifier = (*API)(nil)

const DefaultModel = "gpt-4o-mini"

// Vision endpoints accept still images only; everything else goes to review.
var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func NewOpenAI(apiKey, model, baseURL string, logger *log.Entry) *API {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	api := &API{
		client: openai.NewClientWithConfig(config),
		logger: logger,
	}
	api.WithModel(model)
	api.WithParameters(nil)
	return api
}

func (o *API) WithModel(modelName string) *API {
	if modelName == "" {
		modelName = DefaultModel
	}
	o.model = modelName
	return o
}

func (o *API) WithParameters(parameters *llm.GenerationParameters) *API {
	if parameters == nil {
		parameters = &llm.ScanParameters
	}
	o.parameters = parameters
	return o
}

func (o *API) Scan(ctx context.Context, data []byte, mimeType string, bannedWords []string) (llm.Verdict, error) {
	if !supportedMIMETypes[strings.ToLower(mimeType)] {
		return llm.Verdict{}, fmt.Errorf("mime type %q is not supported: %w", mimeType, errs.ErrInvalidInput)
	}

	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.parameters.Temperature,
		TopP:        o.parameters.TopP,
		MaxTokens:   int(o.parameters.MaxOutputTokens),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llm.ScanPrompt(bannedWords),
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return llm.Verdict{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Verdict{}, fmt.Errorf("openai returned no choices")
	}

	content := resp.Choices[0].Message.Content
	verdict, err := llm.ParseVerdict(content)
	if err != nil {
		o.logger.WithField("method", "Scan").WithField("response", content).Debug("unparsable verdict")
		return llm.Verdict{}, err
	}
	return verdict, nil
}
