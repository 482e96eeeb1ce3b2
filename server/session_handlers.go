package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-admin-console/auth"
)

const maxEventWait = time.Minute

// SessionResponse is the console's view of the session manager.
type SessionResponse struct {
	State     auth.State `json:"state"`
	User      *UserView  `json:"user,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notice    string     `json:"notice,omitempty"`
}

type UserView struct {
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type NewPasswordRequest struct {
	NewPassword  string `json:"new_password"`
	Confirmation string `json:"confirmation"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email        string `json:"email"`
	Code         string `json:"code"`
	NewPassword  string `json:"new_password"`
	Confirmation string `json:"confirmation"`
}

type EventResponse struct {
	Notice string `json:"notice,omitempty"`
}

func (s *Server) sessionResponse() SessionResponse {
	resp := SessionResponse{State: s.sessions.State()}
	if session, ok := s.sessions.CurrentSession(); ok {
		resp.User = &UserView{Username: session.Username, Email: session.Email, Groups: session.Groups}
		expiresAt := session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	if notice, ok := s.sessions.LastNotice(); ok && resp.State != auth.StateAuthenticated {
		resp.Notice = string(notice)
	}
	return resp
}

// SessionHandler returns the current authentication state.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

// NewPasswordHandler answers a pending new password challenge.
func (s *Server) NewPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NewPasswordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.sessions.CompleteNewPassword(r.Context(), req.NewPassword, req.Confirmation); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

func (s *Server) CancelChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Cancel(r.Context())
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

// LogoutHandler always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Logout(r.Context())
		writeJSON(w, http.StatusOK, s.sessionResponse())
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		delivery, err := s.sessions.ForgotPassword(r.Context(), req.Email)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, delivery)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.sessions.ResetPasswordConfirm(r.Context(), req.Email, req.Code, req.NewPassword, req.Confirmation); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionEventsHandler returns the latest session notice. With ?wait=<duration>
// it blocks until the next notice arrives or the wait elapses.
func (s *Server) SessionEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait := r.URL.Query().Get("wait")
		if wait == "" {
			notice, _ := s.sessions.LastNotice()
			writeJSON(w, http.StatusOK, EventResponse{Notice: string(notice)})
			return
		}

		d, err := time.ParseDuration(wait)
		if err != nil || d <= 0 {
			writeJSONError(w, "invalid_request", fmt.Sprintf("invalid wait %q", wait), http.StatusBadRequest)
			return
		}
		d = min(d, maxEventWait)

		notices, stop := s.sessions.Subscribe()
		defer stop()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case notice := <-notices:
			writeJSON(w, http.StatusOK, EventResponse{Notice: string(notice)})
		case <-timer.C:
			w.WriteHeader(http.StatusNoContent)
		case <-r.Context().Done():
		}
	}
}

// NotFoundHandler answers console paths that have no route.
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "not_found", "no such route", http.StatusNotFound)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, "invalid_request", "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
