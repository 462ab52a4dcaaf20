// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package password derives and verifies password digests.
//
// A digest is the hex encoded PBKDF2-SHA256 key of the password, salted with the
// process wide secret. Digests are deterministic, so the same secret must be used
// for the lifetime of the stored data.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count
	Iterations = 1024
	// KeyLength is the length of the derived key in bytes. The hex digest has twice as many characters.
	KeyLength = 64
)

// Service derives and verifies password digests
type Service struct {
	secret []byte
}

// New returns a new password service for secret
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("password secret must not be empty")
	}
	return &Service{secret: []byte(secret)}, nil
}

// Derive returns the hex digest of password
func (s *Service) Derive(password string) string {
	key := pbkdf2.Key([]byte(password), s.secret, Iterations, KeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// Verify returns true if digest is the digest of candidate
func (s *Service) Verify(candidate, digest string) bool {
	derived := s.Derive(candidate)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(digest)) == 1
}
