package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type validateResponse struct {
	Valid bool `json:"valid"`
}

// ValidateAuth checks the configured credentials against the server before
// any work is scheduled. A definitive rejection (401/403, or a response with
// valid=false) returns ErrAuth; a network failure returns
// ErrServerUnreachable so the caller can decide whether to proceed.
func (c *Client) ValidateAuth(ctx context.Context) error {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/authentication/validate", nil)
	})
	if err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validate credentials: %w: unexpected status %d", ErrServerUnreachable, resp.StatusCode)
	}
	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("validate credentials: %w: decode response: %v", ErrServerUnreachable, err)
	}
	if !body.Valid {
		return fmt.Errorf("validate credentials: %w", ErrAuth)
	}
	return nil
}
