package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/models"
)

// ErrNoImage is returned when the model answers without an image part.
var ErrNoImage = errors.New("The AI model failed to generate an image. This may be due to a content policy violation or a temporary issue. Please try again with a different image.")

// ErrEmptyResponse is returned when the model returns no usable text.
var ErrEmptyResponse = errors.New("the AI model returned an empty response")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client runs analysis, image and text prompts against Gemini.
type Client struct {
	models     contentGenerator
	textModel  string
	imageModel string
	log        *slog.Logger
}

func NewClient(ctx context.Context, cfg config.Gemini, log *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		models:     client.Models,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		log:        log,
	}, nil
}

var productAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"productType":     {Type: genai.TypeString, Description: "What the product is."},
		"imageQuality":    {Type: genai.TypeString, Description: "Assessment of the photo quality."},
		"friendlyCaption": {Type: genai.TypeString, Description: "One encouraging line for the user."},
	},
	Required: []string{"productType", "imageQuality", "friendlyCaption"},
}

var vintageAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"imageType":       {Type: genai.TypeString, Description: "What the photo shows."},
		"imageQuality":    {Type: genai.TypeString, Description: "Condition of the photo."},
		"friendlyCaption": {Type: genai.TypeString, Description: "One encouraging line for the user."},
	},
	Required: []string{"imageType", "imageQuality", "friendlyCaption"},
}

var postGenerationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"description":  {Type: genai.TypeString},
		"marketingTip": {Type: genai.TypeString},
	},
	Required: []string{"description", "marketingTip"},
}

func (c *Client) AnalyzeProduct(ctx context.Context, img models.Image) (*models.ProductAnalysis, error) {
	var out models.ProductAnalysis
	if err := c.generateJSON(ctx, productAnalysisSchema, &out, genai.NewPartFromText(productAnalysisPrompt), imagePart(img)); err != nil {
		return nil, fmt.Errorf("analyze product: %w", err)
	}
	return &out, nil
}

func (c *Client) AnalyzeVintage(ctx context.Context, img models.Image) (*models.VintageAnalysis, error) {
	var out models.VintageAnalysis
	if err := c.generateJSON(ctx, vintageAnalysisSchema, &out, genai.NewPartFromText(vintageAnalysisPrompt), imagePart(img)); err != nil {
		return nil, fmt.Errorf("analyze vintage photo: %w", err)
	}
	return &out, nil
}

func (c *Client) EnhanceProduct(ctx context.Context, img models.Image, analysis models.ProductAnalysis) (*models.Image, error) {
	out, err := c.generateImage(ctx, genai.NewPartFromText(enhancePrompt(analysis.ProductType)), imagePart(img))
	if err != nil {
		return nil, fmt.Errorf("enhance product: %w", err)
	}
	return out, nil
}

func (c *Client) Colorize(ctx context.Context, img models.Image, analysis models.VintageAnalysis) (*models.Image, error) {
	out, err := c.generateImage(ctx, genai.NewPartFromText(colorizePrompt(analysis.ImageType)), imagePart(img))
	if err != nil {
		return nil, fmt.Errorf("colorize: %w", err)
	}
	return out, nil
}

func (c *Client) DescribeResult(ctx context.Context, analysis models.ProductAnalysis) (*models.PostGenerationAnalysis, error) {
	var out models.PostGenerationAnalysis
	if err := c.generateJSON(ctx, postGenerationSchema, &out, genai.NewPartFromText(postGenerationPrompt(analysis.ProductType))); err != nil {
		return nil, fmt.Errorf("post-generation analysis: %w", err)
	}
	return &out, nil
}

// GenerateText answers a free-form prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.textModel, []*genai.Content{{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}}}, nil)
	if err != nil {
		c.log.Error("gemini text request failed", "model", c.textModel, "err", err)
		return "", fmt.Errorf("generate text: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) generateJSON(ctx context.Context, schema *genai.Schema, out any, parts ...*genai.Part) error {
	resp, err := c.models.GenerateContent(ctx, c.textModel, []*genai.Content{{Role: "user", Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		c.log.Error("gemini request failed", "model", c.textModel, "err", err)
		return err
	}
	text := responseText(resp)
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		c.log.Error("gemini returned malformed json", "body", truncate(text, 512))
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func (c *Client) generateImage(ctx context.Context, parts ...*genai.Part) (*models.Image, error) {
	resp, err := c.models.GenerateContent(ctx, c.imageModel, []*genai.Content{{Role: "user", Parts: parts}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		c.log.Error("gemini image request failed", "model", c.imageModel, "err", err)
		return nil, err
	}
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
					mime := part.InlineData.MIMEType
					if mime == "" {
						mime = "image/png"
					}
					return &models.Image{Data: part.InlineData.Data, MIMEType: mime}, nil
				}
			}
		}
	}
	c.log.Warn("gemini returned no image", "model", c.imageModel, "text", truncate(responseText(resp), 256))
	return nil, ErrNoImage
}

func imagePart(img models.Image) *genai.Part {
	return genai.NewPartFromBytes(img.Data, img.MIMEType)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
