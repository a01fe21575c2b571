package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapStore is an in-memory ledger.Store keyed by holder.
type mapStore struct {
	mu       sync.Mutex
	balances map[string]int
	loads    int
}

func newMapStore() *mapStore {
	return &mapStore{balances: make(map[string]int)}
}

func (m *mapStore) Load(_ context.Context, id models.Identity) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	v, ok := m.balances[id.Key()]
	if !ok {
		return 0, ledger.ErrNoBalance
	}
	return v, nil
}

func (m *mapStore) Create(_ context.Context, id models.Identity, grant int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.balances[id.Key()]; ok {
		return v, false, nil
	}
	m.balances[id.Key()] = grant
	return grant, true, nil
}

func (m *mapStore) Deduct(_ context.Context, id models.Identity, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.balances[id.Key()]
	if !ok {
		return 0, ledger.ErrNoBalance
	}
	if v < amount {
		return v, ledger.ErrInsufficientCredits
	}
	m.balances[id.Key()] = v - amount
	return v - amount, nil
}

func (m *mapStore) Add(_ context.Context, id models.Identity, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.balances[id.Key()]
	if !ok {
		return 0, ledger.ErrNoBalance
	}
	m.balances[id.Key()] = v + amount
	return v + amount, nil
}

func (m *mapStore) balance(id models.Identity) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id.Key()]
}

// fakeModel is a scripted ImageModel.
type fakeModel struct {
	mu    sync.Mutex
	calls []string

	productErr  error
	vintageErr  error
	enhanceErr  error
	colorizeErr error
	describeErr error
	textErr     error
	block       bool
}

func (f *fakeModel) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeModel) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeModel) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeModel) AnalyzeProduct(ctx context.Context, _ models.Image) (*models.ProductAnalysis, error) {
	f.record("analyze-product")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.productErr != nil {
		return nil, f.productErr
	}
	return &models.ProductAnalysis{ProductType: "Sneaker", ImageQuality: "Good", FriendlyCaption: "Clean product shot detected."}, nil
}

func (f *fakeModel) AnalyzeVintage(_ context.Context, _ models.Image) (*models.VintageAnalysis, error) {
	f.record("analyze-vintage")
	if f.vintageErr != nil {
		return nil, f.vintageErr
	}
	return &models.VintageAnalysis{ImageType: "Portrait", ImageQuality: "Faded", FriendlyCaption: "Vintage vibes detected."}, nil
}

func (f *fakeModel) EnhanceProduct(_ context.Context, _ models.Image, _ models.ProductAnalysis) (*models.Image, error) {
	f.record("enhance")
	if f.enhanceErr != nil {
		return nil, f.enhanceErr
	}
	return &models.Image{Data: []byte("enhanced"), MIMEType: "image/png"}, nil
}

func (f *fakeModel) Colorize(_ context.Context, _ models.Image, _ models.VintageAnalysis) (*models.Image, error) {
	f.record("colorize")
	if f.colorizeErr != nil {
		return nil, f.colorizeErr
	}
	return &models.Image{Data: []byte("colour"), MIMEType: "image/png"}, nil
}

func (f *fakeModel) DescribeResult(_ context.Context, a models.ProductAnalysis) (*models.PostGenerationAnalysis, error) {
	f.record("describe")
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &models.PostGenerationAnalysis{Description: "Your " + a.ProductType + " in a studio.", MarketingTip: "Use it in ads."}, nil
}

func (f *fakeModel) GenerateText(_ context.Context, prompt string) (string, error) {
	f.record("text")
	if f.textErr != nil {
		return "", f.textErr
	}
	return "gemini says " + prompt, nil
}

type fakeCompleter struct {
	out json.RawMessage
	err error
}

func (f *fakeCompleter) Complete(context.Context, string) (json.RawMessage, error) {
	return f.out, f.err
}

var testTimeouts = config.Timeouts{Analyze: time.Second, Generate: time.Second}

// A tiny valid payload; the fake model never decodes it.
var testInput = ImageInput{PhotoDataURI: "data:image/jpeg;base64,/9j/4AAQ", MIMEType: "image/jpeg"}

func testCatalogue() config.Catalogue {
	c, err := config.LoadCatalogue("")
	if err != nil {
		panic(err)
	}
	return c
}

func newTestLedger(docs, anon ledger.Store, plans *PlanService) *ledger.Ledger {
	return ledger.New(docs, anon, plans.StartingCredits, time.Minute, ledger.NewEmitter(), discardLogger())
}
