package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSignErrorRejectionPhrases(t *testing.T) {
	cases := []string{
		"Transaction rejected by user",
		"User rejected the request",
		"user denied transaction signature",
		"signer: signing rejected (code 4001)",
	}
	for _, msg := range cases {
		err := normalizeSignError(errors.New(msg))
		assert.ErrorIs(t, err, ErrSignatureRejected, "phrase %q must normalize", msg)
	}
}

func TestNormalizeSignErrorPassthrough(t *testing.T) {
	cause := errors.New("connection refused")
	err := normalizeSignError(cause)
	assert.NotErrorIs(t, err, ErrSignatureRejected)
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, normalizeSignError(nil))
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := transportError("balance query failed", cause)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "balance query failed")
}

func TestDuplicateProposalErrorMessage(t *testing.T) {
	err := &DuplicateProposalError{ExistingHash: "0xabc", NumApprovals: 2}
	assert.Contains(t, err.Error(), "0xabc")
	assert.Contains(t, err.Error(), "2 approvals")
}

func TestStaleProposalErrorMessage(t *testing.T) {
	err := &StaleProposalError{Module: "0xdef", Reason: "module list changed"}
	assert.Contains(t, err.Error(), "outdated proposal for module 0xdef")
	assert.Contains(t, err.Error(), "must be re-created")
}

func TestSanitizeReasonElidesHexBlobs(t *testing.T) {
	blob := "0x" + strings.Repeat("ab", 64)
	reason := fmt.Sprintf("execution failed with data %s here", blob)
	sanitized := sanitizeReason(reason)
	assert.NotContains(t, sanitized, blob)
	assert.Contains(t, sanitized, "...")
	// Short hex like selectors survives.
	assert.Equal(t, "selector 0x08c379a0 unknown", sanitizeReason("selector 0x08c379a0 unknown"))
}
