package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Signer mints a payment proof for a quoted requirement. Implementations own
// the key material and signature scheme; each call must produce a fresh,
// single-use authorization.
type Signer interface {
	Sign(ctx context.Context, requirement Requirement) (*Proof, error)
}

// Client wraps outbound calls to priced endpoints so that a 402 challenge is
// transparently paid and retried exactly once.
type Client struct {
	httpClient *http.Client
	signer     Signer
	logger     *logrus.Logger
}

// NewClient creates a paying client backed by the given signer.
func NewClient(signer Signer, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		logger:     logger,
	}
}

// CallPaidService POSTs body as JSON to url. On a 402 response it parses the
// challenge, mints a proof for the quoted requirement and retries the
// identical request once. Any other failure is surfaced immediately; a
// failure after the paid retry is terminal.
func (c *Client) CallPaidService(ctx context.Context, url string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	status, respBody, err := c.post(ctx, url, payload, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusPaymentRequired {
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("service returned %d: %s", status, string(respBody))
		}
		return respBody, nil
	}

	var challenge Challenge
	if err := json.Unmarshal(respBody, &challenge); err != nil {
		return nil, fmt.Errorf("malformed payment challenge: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("payment challenge quotes no requirements")
	}
	requirement := challenge.Accepts[0]
	c.logger.Infof("Received 402 from %s - paying %s on %s", url, requirement.Amount, requirement.Network)

	proof, err := c.signer.Sign(ctx, requirement)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment: %w", err)
	}
	header, err := proof.EncodeHeader()
	if err != nil {
		return nil, err
	}

	status, respBody, err = c.post(ctx, url, payload, header)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		// No second retry: a rejected proof is terminal for this call.
		return nil, fmt.Errorf("paid retry returned %d: %s", status, string(respBody))
	}
	return respBody, nil
}

func (c *Client) post(ctx context.Context, url string, payload []byte, proofHeader string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if proofHeader != "" {
		req.Header.Set(ProofHeader, proofHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return resp.StatusCode, body, nil
}
