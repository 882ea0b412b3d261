package clients

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"multisig-backend/internal/config"
)

// RemoteSignerClient talks to an external signer service that holds
// the owner's key and prompts for approval. A declined prompt comes
// back as a rejection error.
type RemoteSignerClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// SignRequest is the signer service request body.
type SignRequest struct {
	Address string `json:"address"`
	Digest  string `json:"digest"` // 32-byte hash, hex
}

// SignResponse is the signer service response body.
type SignResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"` // 65-byte [R||S||V], hex
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// NewRemoteSignerClient builds a client from the blockchain config.
func NewRemoteSignerClient(cfg config.BlockchainConfig) *RemoteSignerClient {
	timeout := 60 * time.Second
	if cfg.SignerTimeout > 0 {
		timeout = time.Duration(cfg.SignerTimeout) * time.Second
	}
	return &RemoteSignerClient{
		baseURL:   cfg.SignerURL,
		authToken: cfg.SignerAuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SignDigest asks the signer service to sign the given digest for the
// given address. The returned signature is 65 bytes, recoverable.
func (c *RemoteSignerClient) SignDigest(address common.Address, digest []byte) ([]byte, error) {
	req := SignRequest{
		Address: address.Hex(),
		Digest:  "0x" + hex.EncodeToString(digest),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("signer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer response: %w", err)
	}

	var signResp SignResponse
	if err := json.Unmarshal(respBody, &signResp); err != nil {
		return nil, fmt.Errorf("failed to parse signer response: %w", err)
	}

	if !signResp.Success {
		// The error string is passed through verbatim; rejection
		// phrases are normalized one layer up.
		return nil, fmt.Errorf("%s", signResp.Error)
	}

	sig := common.FromHex(signResp.Signature)
	if len(sig) != 65 {
		return nil, fmt.Errorf("signer returned %d-byte signature, expected 65", len(sig))
	}
	return sig, nil
}
