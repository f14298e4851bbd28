// Package payment talks to the external payment gateway and turns captured
// deposits into coin credits.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotCaptured is returned when the gateway reports the deposit as not
// (or not yet) captured.
var ErrNotCaptured = errors.New("deposit not captured")

// Gateway is an HTTP client for the payment provider's confirmation API.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
}

type depositStatus struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
	CashAmount  int64  `json:"cash_amount"`
}

func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ConfirmDeposit asks the gateway whether the deposit identified by
// externalRef was captured, returning the captured cash amount. A pending
// or unknown deposit returns ErrNotCaptured so the caller can retry later.
func (g *Gateway) ConfirmDeposit(ctx context.Context, externalRef string) (int64, error) {
	if g == nil || g.baseURL == "" {
		return 0, fmt.Errorf("payment gateway not configured")
	}

	url := fmt.Sprintf("%s/api/deposits/%s", g.baseURL, externalRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNotCaptured
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result depositStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if result.Status != "captured" {
		return 0, ErrNotCaptured
	}
	return result.CashAmount, nil
}
