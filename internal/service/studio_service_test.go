package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/magicpixa/internal/config"
)

func TestStudioAnalyze(t *testing.T) {
	model := &fakeModel{}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	got, err := s.Analyze(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, "Sneaker", got.ProductType)
	assert.Equal(t, []string{"analyze-product"}, model.Calls())
}

func TestStudioRejectsMissingInput(t *testing.T) {
	model := &fakeModel{}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	for _, in := range []ImageInput{{}, {PhotoDataURI: testInput.PhotoDataURI}, {MIMEType: "image/png"}, {PhotoDataURI: "data:image/png,raw", MIMEType: "image/png"}} {
		_, err := s.Analyze(context.Background(), in)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, model.Calls())
}

func TestStudioProviderFailure(t *testing.T) {
	cause := errors.New("429 Resource has been exhausted")
	model := &fakeModel{productErr: fmt.Errorf("analyze product: %w", cause)}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	_, err := s.Analyze(context.Background(), testInput)
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.ErrorIs(t, err, cause)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "analyze", genErr.Stage)
	assert.Equal(t, "429 Resource has been exhausted", genErr.Message)
}

func TestStudioGenerate(t *testing.T) {
	model := &fakeModel{}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	got, err := s.Generate(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, "Sneaker", got.Analysis.ProductType)
	assert.Equal(t, "data:image/png;base64,ZW5oYW5jZWQ=", got.EnhancedPhotoDataURI)
	require.NotNil(t, got.PostGenerationAnalysis)
	assert.Equal(t, "Your Sneaker in a studio.", got.PostGenerationAnalysis.Description)
	assert.Equal(t, []string{"analyze-product", "enhance", "describe"}, model.Calls())
}

func TestStudioGenerateWithoutBlurb(t *testing.T) {
	model := &fakeModel{describeErr: errors.New("blurb failed")}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	got, err := s.Generate(context.Background(), testInput)
	require.NoError(t, err)
	assert.Nil(t, got.PostGenerationAnalysis)
	assert.NotEmpty(t, got.EnhancedPhotoDataURI)
}

func TestStudioGenerateNoImage(t *testing.T) {
	noImage := errors.New("The AI model failed to generate an image.")
	model := &fakeModel{enhanceErr: fmt.Errorf("enhance product: %w", noImage)}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	_, err := s.Generate(context.Background(), testInput)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, "The AI model failed to generate an image.", err.Error())
	assert.Equal(t, []string{"analyze-product", "enhance"}, model.Calls())
}

func TestStudioTimeout(t *testing.T) {
	model := &fakeModel{block: true}
	s := NewStudio(model, &fakeCompleter{}, config.Timeouts{Analyze: 20 * time.Millisecond, Generate: time.Second}, discardLogger())

	_, err := s.Analyze(context.Background(), testInput)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStudioColorize(t *testing.T) {
	model := &fakeModel{}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	got, err := s.Colorize(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, "Portrait", got.Analysis.ImageType)
	assert.Equal(t, "data:image/png;base64,Y29sb3Vy", got.ColorizedPhotoDataURI)
	assert.Equal(t, []string{"analyze-vintage", "colorize"}, model.Calls())

	vintage, err := s.AnalyzeVintage(context.Background(), testInput)
	require.NoError(t, err)
	assert.Equal(t, "Faded", vintage.ImageQuality)
}

func TestStudioColorizeAnalysisFailureSkipsGeneration(t *testing.T) {
	model := &fakeModel{vintageErr: errors.New("bad photo")}
	s := NewStudio(model, &fakeCompleter{}, testTimeouts, discardLogger())

	_, err := s.Colorize(context.Background(), testInput)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, []string{"analyze-vintage"}, model.Calls())
}

func TestStudioMultiGenerate(t *testing.T) {
	raw := json.RawMessage(`{"choices":[]}`)
	s := NewStudio(&fakeModel{}, &fakeCompleter{out: raw}, testTimeouts, discardLogger())

	got, err := s.MultiGenerate(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "gemini says a cat", got.GeminiOutput)
	assert.Equal(t, raw, got.PerplexityOutput)

	_, err = s.MultiGenerate(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStudioMultiGenerateFailure(t *testing.T) {
	s := NewStudio(&fakeModel{}, &fakeCompleter{err: errors.New("Perplexity API call failed: bad key")}, testTimeouts, discardLogger())

	_, err := s.MultiGenerate(context.Background(), "a cat")
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, "Perplexity API call failed: bad key", err.Error())
}

func TestTruncateMessageKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 511) + strings.Repeat("é", 10)

	got := truncateMessage(s)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 511)+"…", got)

	short := "  Произошла ошибка  "
	assert.Equal(t, "Произошла ошибка", truncateMessage(short))
}
