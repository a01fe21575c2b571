package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/models"
)

var ErrUnknownFeature = errors.New("unknown feature")

// PlanService answers plan and pricing questions from the catalogue.
type PlanService struct {
	catalogue        config.Catalogue
	testAccountEmail string
	guestGrant       int
}

func NewPlanService(catalogue config.Catalogue, credits config.Credits) *PlanService {
	return &PlanService{
		catalogue:        catalogue,
		testAccountEmail: strings.TrimSpace(credits.TestAccountEmail),
		guestGrant:       credits.GuestGrant,
	}
}

func (s *PlanService) Plans() []config.Plan {
	return s.catalogue.Plans
}

func (s *PlanService) Features() []config.Feature {
	return s.catalogue.Features
}

// Cost returns the credit price of a charged feature.
func (s *PlanService) Cost(feature models.Feature) (int, error) {
	f, ok := s.catalogue.Feature(string(feature))
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	return f.Cost, nil
}

// PlanFor picks the sign-up plan for an email address.
func (s *PlanService) PlanFor(email string) config.Plan {
	name := s.catalogue.DefaultPlan
	if s.catalogue.TestPlan != "" && s.testAccountEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.testAccountEmail) {
		name = s.catalogue.TestPlan
	}
	plan, _ := s.catalogue.Plan(name)
	return plan
}

// StartingCredits is the grant for a holder whose balance is created on first read.
func (s *PlanService) StartingCredits(id models.Identity) int {
	if id.Authenticated() {
		plan, _ := s.catalogue.Plan(s.catalogue.DefaultPlan)
		return plan.Credits
	}
	return s.guestGrant
}
