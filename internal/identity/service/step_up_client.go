package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
)

type stepUpRequest struct {
	PrincipalID string `json:"principal_id"`
	Code        string `json:"code"`
}

type stepUpResponse struct {
	Valid bool `json:"valid"`
}

// HTTPStepUpVerifier asks the external MFA service to check a code with
// POST {url} {"principal_id","code"} -> {"valid": bool}.
type HTTPStepUpVerifier struct {
	url    string
	client *http.Client
}

// NewHTTPStepUpVerifier creates an HTTPStepUpVerifier. Deadlines come from
// the caller's context.
func NewHTTPStepUpVerifier(url string, client *http.Client) *HTTPStepUpVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStepUpVerifier{url: url, client: client}
}

// VerifyStepUp implements StepUpVerifier.
func (v *HTTPStepUpVerifier) VerifyStepUp(ctx context.Context, principalID, code string) (bool, error) {
	body, err := json.Marshal(stepUpRequest{PrincipalID: principalID, Code: code})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build step-up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("step-up request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("step-up service returned status %d", resp.StatusCode)
	}

	var out stepUpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode step-up response: %w", err)
	}
	return out.Valid, nil
}

// UnavailableStepUpVerifier is used when no MFA service is configured. Every
// step-up fails, so protected resources stay closed.
type UnavailableStepUpVerifier struct{}

// VerifyStepUp implements StepUpVerifier.
func (UnavailableStepUpVerifier) VerifyStepUp(context.Context, string, string) (bool, error) {
	return false, identityDomain.ErrStepUpUnavailable
}
