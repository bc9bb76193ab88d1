package ca

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/metrics"
)

// Service exposes an Authority over the two HTTP routes spec.md §6
// documents: POST /certificate/create_certificate and POST
// /certificate/verify_certificate. net/http's ServeMux is used directly:
// two fixed routes don't warrant a router dependency, and no HTTP
// router in the retrieved pack had a usable call site to ground one on
// (see DESIGN.md).
type Service struct {
	authority *Authority
}

// NewService wraps authority for HTTP serving.
func NewService(authority *Authority) *Service {
	return &Service{authority: authority}
}

// Handler builds the route table.
func (svc *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /certificate/create_certificate", svc.handleCreateCertificate)
	mux.HandleFunc("POST /certificate/verify_certificate", svc.handleVerifyCertificate)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	return mux
}

// ListenAndServe binds addr (spec.md §6 default: 0.0.0.0:3000) and serves
// until the listener errors.
func (svc *Service) ListenAndServe(addr string) error {
	log.WithComponent("ca").Info().Str("addr", addr).Msg("listening")
	return http.ListenAndServe(addr, svc.Handler())
}

type createCertificateRequest struct {
	IdentityInfo string `json:"identity_info"`
}

func (svc *Service) handleCreateCertificate(w http.ResponseWriter, r *http.Request) {
	var req createCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	cert, err := svc.authority.IssueCertificate(req.IdentityInfo)
	if err != nil {
		log.WithComponent("ca").Error().Err(err).Msg("certificate issuance failed")
		http.Error(w, "certificate issuance failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cert)
}

type verifyCertificateRequest struct {
	Certificate *Certificate `json:"certificate"`
}

type verifyCertificateResponse struct {
	Valid bool `json:"valid"`
}

// handleVerifyCertificate is a placeholder: spec.md §9 Open Question 6
// leaves verification policy (chain validation, cipher-suite
// negotiation) unspecified, so this only checks signature and expiry.
func (svc *Service) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	var req verifyCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Certificate == nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	valid, err := svc.authority.VerifyCertificate(req.Certificate)
	if err != nil {
		log.WithComponent("ca").Error().Err(err).Msg("certificate verification failed")
		http.Error(w, "certificate verification failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(verifyCertificateResponse{Valid: valid})
}
