package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// VerifyResponse is the facilitator's answer to a verification request.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's answer to a settlement request.
type SettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// Verifier validates a payment proof against the requirement it should satisfy.
// Implemented by FacilitatorClient; gates depend only on this interface.
type Verifier interface {
	Verify(ctx context.Context, proof *Proof, requirement Requirement) (*VerifyResponse, error)
}

// Settler executes a verified payment on the ledger.
type Settler interface {
	Settle(ctx context.Context, proof *Proof, requirement Requirement) (*SettleResponse, error)
}

// FacilitatorClient talks to the external payment facilitator over HTTP.
type FacilitatorClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewFacilitatorClient creates a facilitator client for the given base URL.
func NewFacilitatorClient(baseURL string, logger *logrus.Logger) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type facilitatorRequest struct {
	PaymentPayload      *Proof      `json:"paymentPayload"`
	PaymentRequirements Requirement `json:"paymentRequirements"`
}

// Verify asks the facilitator whether the proof satisfies the requirement.
func (f *FacilitatorClient) Verify(ctx context.Context, proof *Proof, requirement Requirement) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := f.post(ctx, "/verify", facilitatorRequest{proof, requirement}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle asks the facilitator to execute the payment on the ledger.
func (f *FacilitatorClient) Settle(ctx context.Context, proof *Proof, requirement Requirement) (*SettleResponse, error) {
	var out SettleResponse
	if err := f.post(ctx, "/settle", facilitatorRequest{proof, requirement}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes the facilitator and returns its reported wallet address.
func (f *FacilitatorClient) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("facilitator health returned %d", resp.StatusCode)
	}
	var body struct {
		Status      string `json:"status"`
		Facilitator string `json:"facilitator"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed facilitator health body: %w", err)
	}
	return body.Facilitator, nil
}

func (f *FacilitatorClient) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal facilitator request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator call %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	// 4xx bodies still carry a structured result (isValid=false etc).
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed facilitator response from %s: %w", path, err)
	}
	return nil
}
