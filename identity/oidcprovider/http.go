package oidcprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-console/identity"
	"golang.org/x/oauth2"
)

const maxErrorBody = 1 << 20

// errorBody is the error shape of both the token endpoint and the JSON endpoints.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (r tokenResponse) oauth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return token.WithExtra(map[string]any{"id_token": r.IDToken})
}

// Server error codes and the provider codes the console understands.
var errorCodes = map[string]string{
	"invalid_grant":     identity.CodeNotAuthorized,
	"invalid_client":    identity.CodeNotAuthorized,
	"user_not_found":    identity.CodeUserNotFound,
	"invalid_password":  identity.CodeInvalidPassword,
	"code_mismatch":     identity.CodeCodeMismatch,
	"expired_code":      identity.CodeExpiredCode,
	"invalid_session":   identity.CodeChallengeExpired,
	"invalid_request":   identity.CodeInvalidParameter,
	"slow_down":         identity.CodeTooManyRequests,
	"too_many_requests": identity.CodeTooManyRequests,
}

func providerError(code, description string) *identity.ProviderError {
	if mapped, ok := errorCodes[code]; ok {
		code = mapped
	}
	if description == "" {
		description = code
	}
	return &identity.ProviderError{Code: code, Message: description}
}

// mapError turns oauth2 and transport failures into *identity.ProviderError.
func mapError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode != "" {
			return providerError(retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		var body errorBody
		if decodeJSON(retrieveErr.Body, &body) == nil && body.Error != "" {
			return providerError(body.Error, body.ErrorDescription)
		}
		return &identity.ProviderError{Code: fmt.Sprintf("HTTP%d", retrieveErr.Response.StatusCode), Message: string(retrieveErr.Body)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &identity.ProviderError{Code: identity.CodeNetwork, Message: err.Error()}
	}
	return err
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("[Provider.postJSON] marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("[Provider.postJSON] new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return p.do(req, out)
}

func (p *Provider) postForm(ctx context.Context, endpoint, token string) error {
	form := url.Values{"token": {token}, "client_id": {p.oauth.ClientID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[Provider.postForm] new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.oauth.ClientID), url.QueryEscape(p.oauth.ClientSecret))
	return p.do(req, nil)
}

func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &identity.ProviderError{Code: identity.CodeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var body errorBody
		if decodeJSON(raw, &body) == nil && body.Error != "" {
			return providerError(body.Error, body.ErrorDescription)
		}
		return &identity.ProviderError{Code: fmt.Sprintf("HTTP%d", resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("[Provider.do] decode response: %w", err)
	}
	return nil
}

func decodeJSON(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(raw, out)
}
