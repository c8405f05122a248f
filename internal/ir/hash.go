package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSolution    = "quadmatch/solution/v1"
	DomainSolutionSet = "quadmatch/solution-set/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SolutionHash computes the content-addressed identity of one solution.
// Equal solutions hash equally regardless of map iteration order.
func SolutionHash(sol Solution) (string, error) {
	canonical, err := sol.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("SolutionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSolution, canonical), nil
}

// SolutionSetHash computes the identity of a solution multiset. Used to
// compare the outputs of the two execution strategies without caring about
// order.
func SolutionSetHash(sols []Solution) (string, error) {
	canonical, err := MarshalCanonicalSet(sols)
	if err != nil {
		return "", fmt.Errorf("SolutionSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSolutionSet, canonical), nil
}

// MustSolutionHash is like SolutionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSolutionHash(sol Solution) string {
	hash, err := SolutionHash(sol)
	if err != nil {
		panic(err)
	}
	return hash
}
