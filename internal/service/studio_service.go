package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/intake"
	"github.com/digkill/magicpixa/internal/models"
)

var (
	// ErrGenerationFailed matches every provider failure surfaced by Studio.
	ErrGenerationFailed = errors.New("generation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// GenerationError is a provider failure with a short human-readable message.
type GenerationError struct {
	Stage   string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}

// ImageModel is the AI provider behind the studio tools.
type ImageModel interface {
	AnalyzeProduct(ctx context.Context, img models.Image) (*models.ProductAnalysis, error)
	AnalyzeVintage(ctx context.Context, img models.Image) (*models.VintageAnalysis, error)
	EnhanceProduct(ctx context.Context, img models.Image, analysis models.ProductAnalysis) (*models.Image, error)
	Colorize(ctx context.Context, img models.Image, analysis models.VintageAnalysis) (*models.Image, error)
	DescribeResult(ctx context.Context, analysis models.ProductAnalysis) (*models.PostGenerationAnalysis, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// TextCompleter is the secondary text provider used by MultiGenerate.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (json.RawMessage, error)
}

// ImageInput is an encoded upload as received from the client.
type ImageInput struct {
	PhotoDataURI string
	MIMEType     string
}

// Studio orchestrates the analyze, generate and post-generation stages. It never retries.
type Studio struct {
	model    ImageModel
	text     TextCompleter
	timeouts config.Timeouts
	log      *slog.Logger
}

func NewStudio(model ImageModel, text TextCompleter, timeouts config.Timeouts, log *slog.Logger) *Studio {
	return &Studio{model: model, text: text, timeouts: timeouts, log: log}
}

func (in ImageInput) decode() (models.Image, error) {
	if in.PhotoDataURI == "" || in.MIMEType == "" {
		return models.Image{}, fmt.Errorf("%w: photoDataUri and mimeType are required", ErrInvalidInput)
	}
	data, mime, err := intake.DecodeDataURI(in.PhotoDataURI, in.MIMEType)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return models.Image{Data: data, MIMEType: mime}, nil
}

// Analyze classifies a product photo.
func (s *Studio) Analyze(ctx context.Context, in ImageInput) (*models.ProductAnalysis, error) {
	img, err := in.decode()
	if err != nil {
		return nil, err
	}
	return runStage(ctx, s, "analyze", s.timeouts.Analyze, func(ctx context.Context) (*models.ProductAnalysis, error) {
		return s.model.AnalyzeProduct(ctx, img)
	})
}

// Generate re-runs the analysis, produces the enhanced photo and then a marketing blurb.
// The blurb is optional: its failure is logged and the result is returned without it.
func (s *Studio) Generate(ctx context.Context, in ImageInput) (*models.PhotoResult, error) {
	img, err := in.decode()
	if err != nil {
		return nil, err
	}
	analysis, err := runStage(ctx, s, "analyze", s.timeouts.Analyze, func(ctx context.Context) (*models.ProductAnalysis, error) {
		return s.model.AnalyzeProduct(ctx, img)
	})
	if err != nil {
		return nil, err
	}
	enhanced, err := runStage(ctx, s, "generate", s.timeouts.Generate, func(ctx context.Context) (*models.Image, error) {
		return s.model.EnhanceProduct(ctx, img, *analysis)
	})
	if err != nil {
		return nil, err
	}

	result := &models.PhotoResult{
		Analysis:             *analysis,
		EnhancedPhotoDataURI: intake.EncodeDataURI(enhanced.MIMEType, enhanced.Data),
	}
	blurb, err := runStage(ctx, s, "post-generation", s.timeouts.Analyze, func(ctx context.Context) (*models.PostGenerationAnalysis, error) {
		return s.model.DescribeResult(ctx, *analysis)
	})
	if err != nil {
		s.log.Warn("post-generation analysis skipped", "product_type", analysis.ProductType, "err", err)
	} else {
		result.PostGenerationAnalysis = blurb
	}
	return result, nil
}

// AnalyzeVintage classifies an old photo ahead of colourisation.
func (s *Studio) AnalyzeVintage(ctx context.Context, in ImageInput) (*models.VintageAnalysis, error) {
	img, err := in.decode()
	if err != nil {
		return nil, err
	}
	return runStage(ctx, s, "analyze", s.timeouts.Analyze, func(ctx context.Context) (*models.VintageAnalysis, error) {
		return s.model.AnalyzeVintage(ctx, img)
	})
}

// Colorize analyses and then colourises an old photo.
func (s *Studio) Colorize(ctx context.Context, in ImageInput) (*models.ColorizeResult, error) {
	img, err := in.decode()
	if err != nil {
		return nil, err
	}
	analysis, err := runStage(ctx, s, "analyze", s.timeouts.Analyze, func(ctx context.Context) (*models.VintageAnalysis, error) {
		return s.model.AnalyzeVintage(ctx, img)
	})
	if err != nil {
		return nil, err
	}
	colorized, err := runStage(ctx, s, "generate", s.timeouts.Generate, func(ctx context.Context) (*models.Image, error) {
		return s.model.Colorize(ctx, img, *analysis)
	})
	if err != nil {
		return nil, err
	}
	return &models.ColorizeResult{
		Analysis:              *analysis,
		ColorizedPhotoDataURI: intake.EncodeDataURI(colorized.MIMEType, colorized.Data),
	}, nil
}

// MultiGenerate asks Gemini and Perplexity the same prompt concurrently.
func (s *Studio) MultiGenerate(ctx context.Context, prompt string) (*models.MultiResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}

	var result models.MultiResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := runStage(gctx, s, "gemini", s.timeouts.Generate, func(ctx context.Context) (string, error) {
			return s.model.GenerateText(ctx, prompt)
		})
		result.GeminiOutput = text
		return err
	})
	g.Go(func() error {
		raw, err := runStage(gctx, s, "perplexity", s.timeouts.Generate, func(ctx context.Context) (json.RawMessage, error) {
			return s.text.Complete(ctx, prompt)
		})
		result.PerplexityOutput = raw
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

func runStage[T any](ctx context.Context, s *Studio, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	out, err := fn(stageCtx)
	if err == nil {
		s.log.Debug("stage finished", "stage", stage, "took", time.Since(started))
		return out, nil
	}

	var zero T
	msg := causeMessage(err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		msg = fmt.Sprintf("The %s step timed out after %s. Please try again.", stage, timeout)
	}
	s.log.Error("stage failed", "stage", stage, "took", time.Since(started), "err", err)
	return zero, &GenerationError{Stage: stage, Message: truncateMessage(msg), Err: err}
}

// causeMessage returns the message of the innermost wrapped error.
func causeMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func truncateMessage(s string) string {
	const limit = 512
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
