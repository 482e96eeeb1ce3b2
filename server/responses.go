package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-admin-console/api"
	"github.com/jrsteele09/go-admin-console/auth"
	"github.com/jrsteele09/go-admin-console/catalog"
)

const contentTypeJSON = "application/json; charset=utf-8"

// ErrorResponse is the body of every failed console request.
type ErrorResponse struct {
	Error       string                  `json:"error"`
	Description string                  `json:"error_description"`
	Failures    []string                `json:"failures,omitempty"`
	Transaction *TransactionErrorDetail `json:"transaction,omitempty"`
}

// TransactionErrorDetail describes a failed multi step mutation.
type TransactionErrorDetail struct {
	ID              string   `json:"id"`
	Step            string   `json:"step"`
	Index           int      `json:"index"`
	ProductID       int64    `json:"product_id,omitempty"`
	Outcome         string   `json:"rollback_outcome,omitempty"`
	Compensated     []string `json:"compensated,omitempty"`
	LeftBehind      []string `json:"left_behind,omitempty"`
	RollbackWarning string   `json:"rollback_warning,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: errorCode, Description: description})
}

// writeError maps err onto a status code and an error code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "internal_error", Description: err.Error()}
	status := http.StatusInternalServerError

	var (
		policy    *auth.PasswordPolicyViolation
		stepErr   *catalog.TransactionStepError
		httpErr   *api.HTTPError
		authErr   *auth.AuthenticationError
		challenge *auth.ChallengeError
		resetErr  *auth.PasswordResetError
	)

	switch {
	case errors.As(err, &policy):
		status, resp.Error = http.StatusUnprocessableEntity, "password_policy"
		resp.Failures = policy.Failures
		if policy.Mismatch {
			resp.Error = "password_mismatch"
		}
	case errors.As(err, &stepErr):
		status, resp.Error = http.StatusBadGateway, "transaction_failed"
		resp.Transaction = transactionDetail(stepErr)
	case errors.Is(err, api.ErrAuthenticationRequired), errors.Is(err, auth.ErrSessionExpired):
		status, resp.Error = http.StatusUnauthorized, "authentication_required"
	case errors.Is(err, auth.ErrAlreadySignedIn):
		status, resp.Error = http.StatusConflict, "already_signed_in"
	case errors.Is(err, auth.ErrGroupMembershipRequired):
		status, resp.Error = http.StatusForbidden, "forbidden"
	case errors.As(err, &challenge):
		status, resp.Error = http.StatusBadRequest, string(challenge.Kind)
		resp.Description = challenge.Message
		if challenge.Kind == auth.NoActiveChallenge {
			status = http.StatusConflict
		}
	case errors.Is(err, auth.ErrInvalidRequest):
		status, resp.Error = http.StatusBadRequest, "invalid_request"
	case errors.As(err, &authErr):
		status, resp.Error = http.StatusUnauthorized, "invalid_credentials"
		resp.Description = authErr.Message
	case errors.As(err, &resetErr):
		status, resp.Error = http.StatusBadRequest, "password_reset_failed"
		resp.Description = resetErr.Message
	case errors.As(err, &httpErr):
		status, resp.Error = http.StatusBadGateway, "backend_error"
		if httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusConflict {
			status, resp.Error = httpErr.StatusCode, "not_found"
			if httpErr.StatusCode == http.StatusConflict {
				resp.Error = "conflict"
			}
		}
		resp.Description = httpErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("console request failed")
	}
	writeJSON(w, status, resp)
}

func transactionDetail(e *catalog.TransactionStepError) *TransactionErrorDetail {
	detail := &TransactionErrorDetail{
		ID:        e.TransactionID,
		Step:      string(e.Step),
		Index:     e.Index,
		ProductID: e.PrimaryID,
	}
	if e.Report != nil {
		detail.Outcome = string(e.Report.Outcome)
		detail.Compensated = e.Report.Compensated
		detail.LeftBehind = e.Report.Failed
	}
	if e.Rollback != nil {
		detail.RollbackWarning = e.Rollback.Error()
	}
	return detail
}
