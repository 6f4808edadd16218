// Package telephony implements the two-operation telephony control plane
// client: ending a call and redirecting it with dial-out TwiML.
package telephony

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

// Client talks to the telephony provider's call-control REST API.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a telephony control client.
func NewClient(accountSID, authToken, baseURL string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EndCall marks the call as completed, hanging it up.
func (c *Client) EndCall(ctx context.Context, callSID string) error {
	return c.updateCall(ctx, callSID, url.Values{"Status": {"completed"}})
}

// TransferCall redirects the call with inline TwiML dialing toNumber.
func (c *Client) TransferCall(ctx context.Context, callSID, toNumber string) error {
	twiml := fmt.Sprintf(`<Response><Dial>%s</Dial></Response>`, toNumber)
	return c.updateCall(ctx, callSID, url.Values{"Twiml": {twiml}})
}

func (c *Client) updateCall(ctx context.Context, callSID string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return fmt.Errorf("create telephony request: %w", err)
	}
	req.URL.RawQuery = form.Encode()
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("telephony", "http").Inc()
		return fmt.Errorf("telephony request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.Errors.WithLabelValues("telephony", "status").Inc()
		return fmt.Errorf("telephony status %d", resp.StatusCode)
	}
	return nil
}
