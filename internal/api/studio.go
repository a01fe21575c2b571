package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/models"
	"github.com/digkill/magicpixa/internal/service"
)

const (
	msgMissingImage  = "Missing photoDataUri or mimeType in request body"
	msgMissingPrompt = "Missing prompt in request body"

	maxJSONBody      = 16 << 20
	maxMultipartBody = 32 << 20
)

type imageRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
	MIMEType     string `json:"mimeType"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type multiResponse struct {
	Success bool                `json:"success"`
	Result  *models.MultiResult `json:"result"`
}

type intakeResponse struct {
	PhotoDataURI string `json:"photoDataUri"`
	MIMEType     string `json:"mimeType"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// readImage decodes the shared {photoDataUri, mimeType} body and writes the 400 itself.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (service.ImageInput, bool) {
	var req imageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		s.badRequest(w, msgMissingImage)
		return service.ImageInput{}, false
	}
	if strings.TrimSpace(req.PhotoDataURI) == "" || strings.TrimSpace(req.MIMEType) == "" {
		s.badRequest(w, msgMissingImage)
		return service.ImageInput{}, false
	}
	return service.ImageInput{PhotoDataURI: req.PhotoDataURI, MIMEType: req.MIMEType}, true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Studio.Analyze(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Studio.Generate(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeColorizer(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Studio.AnalyzeVintage(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerateColorizer(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Studio.Colorize(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMultiGenerate(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		s.badRequest(w, msgMissingPrompt)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.badRequest(w, msgMissingPrompt)
		return
	}
	res, err := s.svc.Studio.MultiGenerate(r.Context(), req.Prompt)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, multiResponse{Success: true, Result: res})
}

func (s *Server) handleStudioPhoto(w http.ResponseWriter, r *http.Request) {
	s.runCharged(w, r, models.FeaturePhotoStudio)
}

func (s *Server) handleStudioColorize(w http.ResponseWriter, r *http.Request) {
	s.runCharged(w, r, models.FeatureColorizer)
}

func (s *Server) runCharged(w http.ResponseWriter, r *http.Request, feature models.Feature) {
	in, ok := s.readImage(w, r)
	if !ok {
		return
	}
	session, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.svc.Generations.Run(r.Context(), session, feature, in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleIntake normalizes a multipart upload (field "file") into a JPEG data URI.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "Missing file in request body")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.badRequest(w, "Could not read uploaded file")
		return
	}
	declared := header.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		declared = ""
	}
	upload, err := s.svc.Normalizer.Normalize(data, declared)
	if err != nil {
		s.log.Warn("intake rejected", "file", header.Filename, "size", len(data), "err", err)
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, intakeResponse{
		PhotoDataURI: upload.DataURI,
		MIMEType:     upload.ContentType,
		Width:        upload.Width,
		Height:       upload.Height,
	})
}

type plansResponse struct {
	Plans    []config.Plan    `json:"plans"`
	Features []config.Feature `json:"features"`
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, plansResponse{Plans: s.svc.Plans.Plans(), Features: s.svc.Plans.Features()})
}
