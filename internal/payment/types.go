package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is the x402 protocol version spoken by gates and clients.
	ProtocolVersion = 2

	// SchemeExact requires the payer to authorize exactly the quoted amount.
	SchemeExact = "exact"

	// ProofHeader carries the base64-encoded payment proof.
	ProofHeader = "X-Payment"

	// LegacyProofHeader is the older header name still recognized by gates.
	LegacyProofHeader = "Payment-Signature"
)

// Requirement describes one acceptable way to pay for a resource.
type Requirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Amount            string `json:"amount"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// Resource identifies the priced endpoint a challenge protects.
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Challenge is the 402 response body emitted by a payment gate.
type Challenge struct {
	X402Version int           `json:"x402Version"`
	Error       string        `json:"error"`
	Accepts     []Requirement `json:"accepts"`
	Resource    Resource      `json:"resource"`
}

// Proof is a signed payment authorization minted by a paying client in
// response to a challenge. The signature itself is opaque to this package;
// validity and replay prevention belong to the facilitator.
type Proof struct {
	Scheme    string `json:"scheme"`
	Network   string `json:"network"`
	Amount    string `json:"amount"`
	Asset     string `json:"asset"`
	Payer     string `json:"payer"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// EncodeHeader serializes the proof for transport in the payment header.
func (p *Proof) EncodeHeader() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeProofHeader parses a payment header value back into a proof.
func DecodeProofHeader(value string) (*Proof, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		// Older clients sent bare JSON in the header.
		raw = []byte(value)
	}
	var p Proof
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed payment proof header: %w", err)
	}
	return &p, nil
}
