package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	hexAddressPattern = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
	hexHashPattern    = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")
	hexDataPattern    = regexp.MustCompile("^0x([0-9a-fA-F]{2})*$")
)

// IsHexAddress checks whether the string is a 20-byte 0x-prefixed address.
func IsHexAddress(address string) bool {
	return hexAddressPattern.MatchString(address)
}

// IsHexHash checks whether the string is a 32-byte 0x-prefixed hash.
func IsHexHash(hash string) bool {
	return hexHashPattern.MatchString(hash)
}

// IsHexData checks whether the string is valid 0x-prefixed calldata.
// "0x" alone (empty calldata) is valid.
func IsHexData(data string) bool {
	return hexDataPattern.MatchString(data)
}

// NormalizeAddress lowercases an address for internal comparisons.
// Addresses are compared case-insensitively everywhere inside this
// module; the checksummed form is only produced at the API boundary.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// NormalizeHash lowercases a transaction or proposal hash.
func NormalizeHash(hash string) string {
	return strings.ToLower(hash)
}

// ChecksumAddress returns the EIP-55 checksummed form for external returns.
func ChecksumAddress(address string) string {
	if !IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// ParseAddress validates and parses an address string.
func ParseAddress(address string) (common.Address, error) {
	if !IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address format: %s", ElideHex(address))
	}
	return common.HexToAddress(address), nil
}

// ParseHash validates and parses a 32-byte hash string.
func ParseHash(hash string) (common.Hash, error) {
	if !IsHexHash(hash) {
		return common.Hash{}, fmt.Errorf("invalid transaction hash format: %s", ElideHex(hash))
	}
	return common.HexToHash(hash), nil
}

// ElideHex shortens long hex blobs so calldata and other sensitive-looking
// payloads never land in user-facing error text in full.
func ElideHex(s string) string {
	if len(s) <= 18 {
		return s
	}
	if !strings.HasPrefix(strings.ToLower(s), "0x") {
		return s[:18] + "..."
	}
	return s[:10] + "..." + s[len(s)-4:]
}
