package services

import (
	"errors"
	"fmt"
	"strings"

	"multisig-backend/internal/utils"
)

// Error taxonomy. Validation and precondition failures are raised
// before any network write so a doomed call never reaches a signature.
// Transport failures at the read layer are swallowed by fallback;
// at the write layer they are fatal to that call and never retried.

// ValidationError reports malformed input (address, hash, hex data)
// caught before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError reports a state rule violation: caller not an
// owner, transaction not pending, threshold not met, and so on.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

func preconditionErrorf(format string, args ...interface{}) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// DuplicateProposalError rejects proposing a (to, value, data) tuple
// whose computed hash already has a pending instance. It carries the
// existing hash and its approval count so the caller can surface them.
type DuplicateProposalError struct {
	ExistingHash string
	NumApprovals uint64
}

func (e *DuplicateProposalError) Error() string {
	return fmt.Sprintf("an identical transaction is already pending (hash %s, %d approvals)",
		e.ExistingHash, e.NumApprovals)
}

// StaleProposalError rejects executing a proposal whose baked-in
// calldata no longer matches chain state (a disable-module predecessor
// pointer invalidated by an interim topology change). The proposal
// must be cancelled and re-created.
type StaleProposalError struct {
	Module string
	Reason string
}

func (e *StaleProposalError) Error() string {
	return fmt.Sprintf("outdated proposal for module %s, must be re-created: %s", e.Module, e.Reason)
}

// RevertError carries a revert reason decoded from a failed
// simulation or a failed on-chain execution.
type RevertError struct {
	Op     string
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.Reason)
}

// ErrSignatureRejected is the single stable error every
// signer-rejection failure normalizes to, distinguishable from all
// other failures.
var ErrSignatureRejected = errors.New("transaction rejected by user")

// TransportError wraps an RPC or indexer network failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// PostConditionError reports a write that appeared to succeed while a
// following read still shows the old state, e.g. a revoked approval
// that is still active on chain. Reported distinctly from a revert.
type PostConditionError struct {
	Msg string
}

func (e *PostConditionError) Error() string { return e.Msg }

var rejectionPhrases = []string{
	"rejected by user",
	"user rejected",
	"user denied",
	"request rejected",
	"signing rejected",
	"denied transaction signature",
}

// normalizeSignError folds the various signer-rejection codes and
// phrases into ErrSignatureRejected; every other failure passes
// through wrapped.
func normalizeSignError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rejectionPhrases {
		if strings.Contains(msg, phrase) {
			return ErrSignatureRejected
		}
	}
	return fmt.Errorf("signing failed: %w", err)
}

// sanitizeReason elides hex blobs inside a revert reason so raw
// calldata never reaches user-facing error text.
func sanitizeReason(reason string) string {
	fields := strings.Fields(reason)
	for i, f := range fields {
		trimmed := strings.TrimRight(f, ".,;:)")
		if strings.HasPrefix(trimmed, "0x") && len(trimmed) > 18 {
			fields[i] = strings.Replace(f, trimmed, utils.ElideHex(trimmed), 1)
		}
	}
	return strings.Join(fields, " ")
}
