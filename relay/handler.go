package relay

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/coinbase/rosetta-sdk-go/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SponsorRoute is the path of the sponsorship endpoint.
const SponsorRoute = "/sponsor/operation"

// SponsorRequest is the body accepted by the sponsorship endpoint. Fields are
// kept raw and forwarded untouched.
type SponsorRequest struct {
	UserOperation json.RawMessage `json:"userOperation"`
	EntryPoint    json.RawMessage `json:"entryPoint"`
	ChainID       json.RawMessage `json:"chainId"`
}

type errorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Sponsor is the HTTP entry point of the sponsor relay
type Sponsor struct {
	paymaster *Paymaster
	logger    zerolog.Logger
}

var _ server.Router = &Sponsor{}

// NewSponsor returns the relay handler backed by paymaster
func NewSponsor(paymaster *Paymaster, logger zerolog.Logger) *Sponsor {
	return &Sponsor{
		paymaster: paymaster,
		logger:    logger,
	}
}

// Routes returns the relay routes, to be combined with the rosetta controllers.
func (s *Sponsor) Routes() server.Routes {
	return server.Routes{
		{
			Name:        "SponsorOperation",
			Method:      http.MethodPost,
			Pattern:     SponsorRoute,
			HandlerFunc: s.SponsorOperation,
		},
	}
}

// SponsorOperation validates a user operation and relays it to the paymaster.
func (s *Sponsor) SponsorOperation(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)
	logger := s.logger.With().Str("request_id", requestID).Logger()

	var req SponsorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	if missing(req.UserOperation) || missing(req.EntryPoint) || missing(req.ChainID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing userOperation, entryPoint, or chainId"})
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Message: err.Error()})
		return
	}

	logger.Debug().RawJSON("entry_point", req.EntryPoint).RawJSON("chain_id", req.ChainID).Msg("relaying user operation")
	resp, err := s.paymaster.Sponsor(r.Context(), requestID, body)
	if err != nil {
		logger.Error().Err(err).Msg("paymaster unreachable")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Message: err.Error()})
		return
	}

	if !resp.OK() {
		logger.Warn().Int("status", resp.StatusCode).Bytes("details", resp.Body).Msg("paymaster rejected user operation")
		writeJSON(w, resp.StatusCode, errorResponse{Error: "Paymaster API error", Details: details(resp.Body)})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// missing mirrors the falsy check of the web client: absent, null, empty
// string, zero and false all count as missing.
func missing(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`, "0", "false":
		return true
	default:
		return false
	}
}

// details keeps a JSON upstream body as JSON and anything else as text.
func details(body []byte) interface{} {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	return string(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
