package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeRoundTrip(t *testing.T) {
	challenge := Challenge{
		X402Version: ProtocolVersion,
		Error:       "Payment required",
		Accepts: []Requirement{{
			Scheme:            SchemeExact,
			Network:           "eip155:48816",
			Amount:            "10000",
			Asset:             "0x00000000000000000000000000000000000000aa",
			PayTo:             "0x00000000000000000000000000000000000000bb",
			MaxTimeoutSeconds: 300,
		}},
		Resource: Resource{
			URL:         "http://localhost:3001/api/audit",
			Description: "AI-powered smart contract security audit",
		},
	}

	encoded, err := json.Marshal(challenge)
	require.NoError(t, err)

	var decoded Challenge
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, challenge, decoded)
}

func TestProofHeaderRoundTrip(t *testing.T) {
	proof := &Proof{
		Scheme:    SchemeExact,
		Network:   "eip155:48816",
		Amount:    "10000",
		Asset:     "0x00000000000000000000000000000000000000aa",
		Payer:     "0x00000000000000000000000000000000000000cc",
		Nonce:     "7c0c7b0e-0000-4000-8000-000000000000",
		Signature: "0xdeadbeef",
	}

	header, err := proof.EncodeHeader()
	require.NoError(t, err)

	decoded, err := DecodeProofHeader(header)
	require.NoError(t, err)
	assert.Equal(t, proof, decoded)
}

// Older clients put bare JSON in the header instead of base64.
func TestDecodeProofHeaderBareJSON(t *testing.T) {
	decoded, err := DecodeProofHeader(`{"scheme":"exact","payer":"0xcc","signature":"0x01"}`)
	require.NoError(t, err)
	assert.Equal(t, SchemeExact, decoded.Scheme)
	assert.Equal(t, "0xcc", decoded.Payer)
}

func TestDecodeProofHeaderGarbage(t *testing.T) {
	_, err := DecodeProofHeader("not a proof")
	assert.Error(t, err)
}
