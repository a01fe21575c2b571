package models

import "time"

// IdentityState tells whether the identity provider has settled.
type IdentityState string

const (
	IdentityLoading       IdentityState = "loading"
	IdentityAnonymous     IdentityState = "anonymous"
	IdentityAuthenticated IdentityState = "authenticated"
)

// Identity is the caller on whose behalf credits are read and spent.
type Identity struct {
	State       IdentityState
	UID         string
	Email       string
	DisplayName string
	SessionID   string
}

func (i Identity) Authenticated() bool {
	return i.State == IdentityAuthenticated && i.UID != ""
}

func (i Identity) Anonymous() bool {
	return i.State == IdentityAnonymous && i.SessionID != ""
}

// Key identifies the credit holder: the account uid or the anonymous session.
func (i Identity) Key() string {
	switch i.State {
	case IdentityAuthenticated:
		return "user:" + i.UID
	case IdentityAnonymous:
		return "anon:" + i.SessionID
	default:
		return ""
	}
}

// Account is the persisted per-user document.
type Account struct {
	UID              string     `json:"uid"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"displayName"`
	SubscriptionPlan string     `json:"subscriptionPlan"`
	Credits          int        `json:"credits"`
	SignedUpAt       *time.Time `json:"signedUpAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Image is a binary image with its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// ProductAnalysis describes an uploaded product photo.
type ProductAnalysis struct {
	ProductType     string `json:"productType"`
	ImageQuality    string `json:"imageQuality"`
	FriendlyCaption string `json:"friendlyCaption"`
}

// VintageAnalysis describes an uploaded old photo before colourisation.
type VintageAnalysis struct {
	ImageType       string `json:"imageType"`
	ImageQuality    string `json:"imageQuality"`
	FriendlyCaption string `json:"friendlyCaption"`
}

// PostGenerationAnalysis is the short marketing blurb produced after enhancement.
type PostGenerationAnalysis struct {
	Description  string `json:"description"`
	MarketingTip string `json:"marketingTip"`
}

// PhotoResult is the output of the product photo pipeline.
type PhotoResult struct {
	Analysis               ProductAnalysis         `json:"analysis"`
	EnhancedPhotoDataURI   string                  `json:"enhancedPhotoDataUri"`
	PostGenerationAnalysis *PostGenerationAnalysis `json:"postGenerationAnalysis,omitempty"`
}

// ColorizeResult is the output of the colouriser pipeline.
type ColorizeResult struct {
	Analysis              VintageAnalysis `json:"analysis"`
	ColorizedPhotoDataURI string          `json:"colorizedPhotoDataUri"`
}

// MultiResult carries both providers' raw answers.
type MultiResult struct {
	GeminiOutput     string `json:"gemini_output"`
	PerplexityOutput any    `json:"perplexity_output"`
}

type Feature string

const (
	FeaturePhotoStudio Feature = "photo-studio"
	FeatureColorizer   Feature = "colorizer"
)

// GenerationLog is one entry of a user's creation history.
type GenerationLog struct {
	ID         int64     `json:"id"`
	UserUID    string    `json:"-"`
	Feature    Feature   `json:"feature"`
	Cost       int       `json:"cost"`
	ArchiveURL string    `json:"archiveUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PromoCode grants credits to authenticated accounts, once per account.
type PromoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Credits   int       `json:"credits"`
	MaxUses   int       `json:"maxUses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"createdAt"`
}
