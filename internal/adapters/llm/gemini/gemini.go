package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/iamwavecut/ngwarden/internal/adapters"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
)

type API struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Entry
}

var _ adapters.Classifier = (*API)(nil)

const DefaultModel = "gemini-2.0-flash"

func NewGemini(ctx context.Context, apiKey, model string, logger *log.Entry) (*API, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	api := &API{
		client: client,
		logger: logger,
	}
	api.WithModel(model)
	return api, nil
}

func (g *API) WithModel(modelName string) *API {
	if modelName == "" {
		modelName = DefaultModel
	}
	g.model = g.client.GenerativeModel(modelName)
	g.WithSafetySettings(nil)
	g.WithParameters(nil)
	g.model.ResponseSchema = verdictSchema()
	return g
}

func (g *API) WithParameters(parameters *llm.GenerationParameters) *API {
	if parameters == nil {
		parameters = &llm.ScanParameters
	}

	g.model.SetTemperature(parameters.Temperature)
	g.model.SetTopK(parameters.TopK)
	g.model.SetTopP(parameters.TopP)
	g.model.SetMaxOutputTokens(parameters.MaxOutputTokens)
	g.model.ResponseMIMEType = parameters.ResponseMIMEType

	return g
}

// WithSafetySettings defaults to no blocking so that unsafe media gets a
// BLOCK verdict instead of an empty, filtered response.
func (g *API) WithSafetySettings(safetySettings []*genai.SafetySetting) *API {
	if len(safetySettings) == 0 {
		for _, category := range []genai.HarmCategory{
			genai.HarmCategoryHarassment,
			genai.HarmCategoryHateSpeech,
			genai.HarmCategorySexuallyExplicit,
			genai.HarmCategoryDangerousContent,
		} {
			safetySettings = append(safetySettings, &genai.SafetySetting{
				Category:  category,
				Threshold: genai.HarmBlockNone,
			})
		}
	}
	g.model.SafetySettings = safetySettings
	return g
}

func (g *API) Scan(ctx context.Context, data []byte, mimeType string, bannedWords []string) (llm.Verdict, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(llm.ScanPrompt(bannedWords)),
	)
	if err != nil {
		return llm.Verdict{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Verdict{}, fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	verdict, err := llm.ParseVerdict(b.String())
	if err != nil {
		g.logger.WithField("method", "Scan").WithField("response", b.String()).Debug("unparsable verdict")
		return llm.Verdict{}, err
	}
	return verdict, nil
}

func (g *API) Close() error {
	return g.client.Close()
}

func verdictSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"action":    {Type: genai.TypeString, Format: "enum", Enum: []string{string(llm.ActionAllow), string(llm.ActionBlock)}},
			"violation": {Type: genai.TypeString, Format: "enum", Enum: []string{string(llm.CategoryNone), string(llm.CategoryLink), string(llm.CategoryWord), string(llm.CategoryNSFW)}},
			"reason":    {Type: genai.TypeString},
		},
		Required: []string{"action", "violation", "reason"},
	}
}
