package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future encoding change.
const (
	DomainProgram = "hlolower/program/v1"
	DomainBuffers = "hlolower/buffers/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes the content-addressed identity of p.
// Programs that render identically hash identically.
func ProgramHash(p *Program) (string, error) {
	canonical, err := p.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("ProgramHash: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// BuffersHash computes a digest over an ordered buffer list. Replay uses it
// to compare recorded and recomputed outputs.
func BuffersHash(bufs []Buffer) (string, error) {
	canonical, err := MarshalCanonical(BuffersIRValue(bufs))
	if err != nil {
		return "", fmt.Errorf("BuffersHash: %w", err)
	}
	return hashWithDomain(DomainBuffers, canonical), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when the program is known to be valid.
func MustProgramHash(p *Program) string {
	h, err := ProgramHash(p)
	if err != nil {
		panic(err)
	}
	return h
}
