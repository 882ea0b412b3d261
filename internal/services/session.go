package services

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningStrategy signs an EIP-155 transaction digest and knows which
// address the resulting signature recovers to.
type SigningStrategy interface {
	Sign(digest []byte) ([]byte, error)
	Address() common.Address
	Name() string
}

// PrivateKeySigningStrategy signs locally with a raw key.
type PrivateKeySigningStrategy struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewPrivateKeySigningStrategy parses a hex private key (no 0x prefix).
func NewPrivateKeySigningStrategy(hexKey string) (*PrivateKeySigningStrategy, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &PrivateKeySigningStrategy{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *PrivateKeySigningStrategy) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, s.key)
}

func (s *PrivateKeySigningStrategy) Address() common.Address { return s.addr }

func (s *PrivateKeySigningStrategy) Name() string { return "PrivateKey" }

// RemoteSigner is the wallet-prompt side of a remote signing strategy.
// A human may decline the prompt; that surfaces as a rejection error
// which the gateway normalizes to ErrSignatureRejected.
type RemoteSigner interface {
	SignDigest(address common.Address, digest []byte) ([]byte, error)
}

// RemoteSigningStrategy delegates signing to an external signer
// service holding the key.
type RemoteSigningStrategy struct {
	client RemoteSigner
	addr   common.Address
}

func NewRemoteSigningStrategy(client RemoteSigner, addr common.Address) *RemoteSigningStrategy {
	return &RemoteSigningStrategy{client: client, addr: addr}
}

func (s *RemoteSigningStrategy) Sign(digest []byte) ([]byte, error) {
	return s.client.SignDigest(s.addr, digest)
}

func (s *RemoteSigningStrategy) Address() common.Address { return s.addr }

func (s *RemoteSigningStrategy) Name() string { return "Remote" }

// Session is the one shared signer context. Every component that
// writes holds the same *Session; swapping the signer here is a single
// atomic update observed by all of them, so no two components can see
// different signers concurrently.
type Session struct {
	mu     sync.RWMutex
	signer SigningStrategy
}

func NewSession() *Session {
	return &Session{}
}

// SetSigner atomically replaces the active signer. A nil strategy
// clears the session (no writes possible until the next SetSigner).
func (s *Session) SetSigner(strategy SigningStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = strategy
}

// Signer returns the active strategy, or an error when no signer is
// attached.
func (s *Session) Signer() (SigningStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return nil, preconditionErrorf("no signer attached to session")
	}
	return s.signer, nil
}

// CallerAddress returns the active signer's address, or an error when
// no signer is attached.
func (s *Session) CallerAddress() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return common.Address{}, preconditionErrorf("no signer attached to session")
	}
	return s.signer.Address(), nil
}
