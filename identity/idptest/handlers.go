package idptest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Error codes written in the "error" field of failed responses.
const (
	ErrorInvalidRequest      = "invalid_request"
	ErrorInvalidClient       = "invalid_client"
	ErrorInvalidGrant        = "invalid_grant"
	ErrorUnsupportedGrant    = "unsupported_grant_type"
	ErrorNewPasswordRequired = "new_password_required"
	ErrorUserNotFound        = "user_not_found"
	ErrorInvalidSession      = "invalid_session"
	ErrorInvalidPassword     = "invalid_password"
	ErrorCodeMismatch        = "code_mismatch"
	ErrorServer              = "server_error"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type challengeRequest struct {
	Session     string `json:"session"`
	NewPassword string `json:"new_password"`
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (s *Server) discovery(w http.ResponseWriter, _ *http.Request) {
	issuer := s.Issuer()
	resp := map[string]any{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "/oauth2/authorize",
		"token_endpoint":                        issuer + PathToken,
		"jwks_uri":                              issuer + PathJWKS,
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{rs256},
		"grant_types_supported":                 []string{"password", "refresh_token"},
	}
	if !s.omitExtras {
		resp["revocation_endpoint"] = issuer + PathRevoke
		resp["challenge_endpoint"] = issuer + PathChallenge
		resp["forgot_password_endpoint"] = issuer + PathForgotPassword
		resp["reset_password_endpoint"] = issuer + PathResetPassword
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) jwksHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.keys.jwks())
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, ErrorInvalidRequest, "malformed form body", http.StatusBadRequest)
		return
	}
	if !s.clientAuthenticated(r) {
		writeJSONError(w, ErrorInvalidClient, "Client authentication failed.", http.StatusUnauthorized)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.passwordGrant(w, r.PostForm.Get("username"), r.PostForm.Get("password"))
	case "refresh_token":
		s.refreshGrant(w, r.PostForm.Get("refresh_token"))
	default:
		writeJSONError(w, ErrorUnsupportedGrant, "grant type not supported", http.StatusBadRequest)
	}
}

func (s *Server) clientAuthenticated(r *http.Request) bool {
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	return id == s.ClientID && secret == s.ClientSecret
}

func (s *Server) passwordGrant(w http.ResponseWriter, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		writeJSONError(w, ErrorUserNotFound, "User does not exist.", http.StatusBadRequest)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		writeJSONError(w, ErrorInvalidGrant, "Incorrect username or password.", http.StatusBadRequest)
		return
	}

	if u.PasswordChangeRequired {
		session := uuid.New().String()
		s.challenges[session] = u.Email
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             ErrorNewPasswordRequired,
			"error_description": "A new password is required.",
			"session":           session,
		})
		return
	}

	s.writeTokensLocked(w, u, "")
}

func (s *Server) refreshGrant(w http.ResponseWriter, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refreshTokens[refreshToken]
	if !ok || s.revoked[refreshToken] {
		writeJSONError(w, ErrorInvalidGrant, "Invalid Refresh Token", http.StatusBadRequest)
		return
	}
	s.writeTokensLocked(w, s.users[email], refreshToken)
}

func (s *Server) challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, ErrorInvalidRequest, "malformed JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.challenges[req.Session]
	if !ok {
		writeJSONError(w, ErrorInvalidSession, "Invalid session for the user, session is expired.", http.StatusBadRequest)
		return
	}
	delete(s.challenges, req.Session)

	if len(req.NewPassword) < minPasswordLength {
		writeJSONError(w, ErrorInvalidPassword, "Password does not conform to policy: Password not long enough", http.StatusBadRequest)
		return
	}

	u := s.users[email]
	if err := s.setPasswordLocked(u, req.NewPassword); err != nil {
		writeJSONError(w, ErrorServer, err.Error(), http.StatusInternalServerError)
		return
	}
	u.PasswordChangeRequired = false
	s.writeTokensLocked(w, u, "")
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, ErrorInvalidRequest, "malformed JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[req.Username]; !ok {
		writeJSONError(w, ErrorUserNotFound, "User does not exist.", http.StatusBadRequest)
		return
	}
	code, err := newVerificationCode()
	if err != nil {
		writeJSONError(w, ErrorServer, err.Error(), http.StatusInternalServerError)
		return
	}
	s.resetCodes[req.Username] = code

	writeJSON(w, http.StatusOK, map[string]string{
		"destination":     maskEmail(req.Username),
		"delivery_medium": "EMAIL",
	})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, ErrorInvalidRequest, "malformed JSON body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[req.Username]
	if !ok {
		writeJSONError(w, ErrorUserNotFound, "User does not exist.", http.StatusBadRequest)
		return
	}
	if code, ok := s.resetCodes[req.Username]; !ok || code != req.Code {
		writeJSONError(w, ErrorCodeMismatch, "Invalid verification code provided, please try again.", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeJSONError(w, ErrorInvalidPassword, "Password does not conform to policy: Password not long enough", http.StatusBadRequest)
		return
	}
	if err := s.setPasswordLocked(u, req.NewPassword); err != nil {
		writeJSONError(w, ErrorServer, err.Error(), http.StatusInternalServerError)
		return
	}
	delete(s.resetCodes, req.Username)
	w.WriteHeader(http.StatusNoContent)
}

// revoke always answers 200, as RFC 7009 requires for unknown tokens.
func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, ErrorInvalidRequest, "malformed form body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.revoked[r.PostForm.Get("token")] = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeTokensLocked(w http.ResponseWriter, u *User, refreshToken string) {
	resp, err := s.issueTokensLocked(u, refreshToken)
	if err != nil {
		writeJSONError(w, ErrorServer, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
