package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/magicpixa/internal/intake"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
	"github.com/digkill/magicpixa/internal/storage"
)

type generationLog interface {
	Log(ctx context.Context, entry models.GenerationLog) error
}

// GenerationService runs charged studio tools: gate on balance, generate, then deduct.
type GenerationService struct {
	studio      *Studio
	plans       *PlanService
	generations generationLog
	archive     storage.Archiver
	log         *slog.Logger
}

// ChargedResult is a studio result together with its billing outcome.
type ChargedResult struct {
	Feature    models.Feature         `json:"feature"`
	Cost       int                    `json:"cost"`
	Charged    bool                   `json:"charged"`
	Credits    int                    `json:"credits"`
	ArchiveURL string                 `json:"archiveUrl,omitempty"`
	Photo      *models.PhotoResult    `json:"photo,omitempty"`
	Colorized  *models.ColorizeResult `json:"colorized,omitempty"`
}

// NewGenerationService wires the charged flow. archive may be nil.
func NewGenerationService(studio *Studio, plans *PlanService, generations generationLog, archive storage.Archiver, log *slog.Logger) *GenerationService {
	return &GenerationService{
		studio:      studio,
		plans:       plans,
		generations: generations,
		archive:     archive,
		log:         log,
	}
}

// Run executes feature for the session's holder. Nothing is charged unless generation succeeds.
func (s *GenerationService) Run(ctx context.Context, session *ledger.Session, feature models.Feature, in ImageInput) (*ChargedResult, error) {
	cost, err := s.plans.Cost(feature)
	if err != nil {
		return nil, err
	}
	switch session.State() {
	case ledger.StateAnonymousReady, ledger.StateAuthenticatedReady:
	default:
		return nil, ledger.ErrIdentityLoading
	}
	if !session.CanAfford(cost) {
		return nil, ledger.ErrInsufficientCredits
	}

	res := &ChargedResult{Feature: feature, Cost: cost}
	var output string
	switch feature {
	case models.FeaturePhotoStudio:
		res.Photo, err = s.studio.Generate(ctx, in)
		if err == nil {
			output = res.Photo.EnhancedPhotoDataURI
		}
	case models.FeatureColorizer:
		res.Colorized, err = s.studio.Colorize(ctx, in)
		if err == nil {
			output = res.Colorized.ColorizedPhotoDataURI
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if err != nil {
		return nil, err
	}

	id := session.Identity()
	credits, err := session.Deduct(ctx, cost)
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		// A concurrent run spent the balance between the gate and the charge.
		s.log.Warn("deduct lost to concurrent run, withholding output", "holder", id.Key(), "feature", feature, "cost", cost)
		return nil, ledger.ErrInsufficientCredits
	case err != nil:
		// Store failure: the output is already produced, hand it over and accept the lost charge.
		s.log.Error("deduct after generation failed", "holder", id.Key(), "feature", feature, "cost", cost, "err", err)
		res.Credits = session.Balance().Credits
	default:
		res.Charged = true
		res.Credits = credits
	}

	if id.Authenticated() {
		res.ArchiveURL = s.archiveOutput(ctx, output)
		entry := models.GenerationLog{UserUID: id.UID, Feature: feature, Cost: cost, ArchiveURL: res.ArchiveURL}
		if !res.Charged {
			entry.Cost = 0
		}
		if err := s.generations.Log(ctx, entry); err != nil {
			s.log.Error("failed to log generation", "uid", id.UID, "err", err)
		}
	}
	return res, nil
}

func (s *GenerationService) archiveOutput(ctx context.Context, dataURI string) string {
	if s.archive == nil || dataURI == "" {
		return ""
	}
	data, mime, err := intake.DecodeDataURI(dataURI, "")
	if err != nil {
		s.log.Error("decode output for archive", "err", err)
		return ""
	}
	url, err := s.archive.Upload(ctx, data, mime)
	if err != nil {
		s.log.Error("archive creation", "err", err)
		return ""
	}
	return url
}
