package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/bitagent/bitagent-go/internal/payment"
)

// Connect dials the ledger RPC endpoint.
func Connect(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger RPC %s: %w", rpcURL, err)
	}
	return client, nil
}

// Wallet holds a signing key and its derived address.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewWallet parses a hex-encoded private key.
func NewWallet(privateKeyHex string, chainID int64) (*Wallet, error) {
	if len(privateKeyHex) > 1 && privateKeyHex[0:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

// Address returns the wallet's hex address.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// TransactOpts builds signed transaction options for contract writes.
func (w *Wallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}

// Sign mints a payment proof for the quoted requirement: a fresh nonce is
// drawn per call and the digest over the requirement fields is signed with
// the wallet key, so each authorization is call-specific and single-use.
func (w *Wallet) Sign(ctx context.Context, requirement payment.Requirement) (*payment.Proof, error) {
	nonce := uuid.NewString()
	digest := crypto.Keccak256(
		[]byte(requirement.Scheme),
		[]byte(requirement.Network),
		[]byte(requirement.Amount),
		[]byte(requirement.Asset),
		[]byte(requirement.PayTo),
		[]byte(nonce),
	)
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment digest: %w", err)
	}
	return &payment.Proof{
		Scheme:    requirement.Scheme,
		Network:   requirement.Network,
		Amount:    requirement.Amount,
		Asset:     requirement.Asset,
		Payer:     w.address.Hex(),
		Nonce:     nonce,
		Signature: hexutil.Encode(sig),
	}, nil
}
