// Package hash computes content digests and checks them against integrity
// constraints published by Mojang, the Forge Maven and CurseForge.
package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Supported algorithm identifiers.
const (
	SHA1    = "sha1"
	MD5     = "md5"
	SHA256  = "sha256"
	SHA512  = "sha512"
	Murmur2 = "murmur2"
)

var (
	// ErrUnknownAlgorithm is a configuration error: the constraint names an
	// algorithm this package cannot compute. It is never retried.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

	// ErrIntegrity is matched by every *IntegrityError.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrNoAcceptedValues is returned for constraints with an empty accepted set.
	ErrNoAcceptedValues = errors.New("constraint has no accepted digests")
)

type digestFunc func([]byte) string

var algorithms = map[string]digestFunc{
	SHA1: func(b []byte) string {
		sum := sha1.Sum(b)
		return hex.EncodeToString(sum[:])
	},
	MD5: func(b []byte) string {
		sum := md5.Sum(b)
		return hex.EncodeToString(sum[:])
	},
	SHA256: func(b []byte) string {
		sum := sha256.Sum256(b)
		return hex.EncodeToString(sum[:])
	},
	SHA512: func(b []byte) string {
		sum := sha512.Sum512(b)
		return hex.EncodeToString(sum[:])
	},
	Murmur2: func(b []byte) string {
		return strconv.FormatUint(uint64(Fingerprint(b)), 10)
	},
}

var aliases = map[string]string{
	"sha-1":       SHA1,
	"sha-256":     SHA256,
	"sha-512":     SHA512,
	"fingerprint": Murmur2,
}

// Normalize maps an algorithm identifier to its canonical lower-case name.
func Normalize(algorithm string) string {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Supported reports whether algorithm can be computed.
func Supported(algorithm string) bool {
	_, ok := algorithms[Normalize(algorithm)]
	return ok
}

// Digest computes the digest of data under algorithm. Hex is used for the
// cryptographic digests and a decimal string for the murmur2 fingerprint.
func Digest(algorithm string, data []byte) (string, error) {
	fn, ok := algorithms[Normalize(algorithm)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return fn(data), nil
}

// Constraint is an algorithm plus the set of digests accepted for a file.
type Constraint struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
	Accepted  Values `yaml:"accepted" json:"accepted"`
}

// NewConstraint builds a constraint for a single algorithm.
func NewConstraint(algorithm string, accepted ...string) Constraint {
	return Constraint{Algorithm: algorithm, Accepted: Values(accepted)}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s%v", Normalize(c.Algorithm), []string(c.Accepted))
}

// Validate checks that the constraint can be evaluated at all.
func (c Constraint) Validate() error {
	if !Supported(c.Algorithm) {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Algorithm)
	}
	if len(c.Accepted) == 0 {
		return fmt.Errorf("%s: %w", Normalize(c.Algorithm), ErrNoAcceptedValues)
	}
	return nil
}

// Accepts reports whether digest is a member of the accepted set.
func (c Constraint) Accepts(digest string) bool {
	want := normalizeDigest(digest)
	return slices.ContainsFunc(c.Accepted, func(v string) bool {
		return normalizeDigest(v) == want
	})
}

// Verify hashes data under the constraint's algorithm and checks membership in
// the accepted set. A mismatch returns an *IntegrityError.
func Verify(data []byte, c Constraint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	got, err := Digest(c.Algorithm, data)
	if err != nil {
		return err
	}
	if !c.Accepts(got) {
		return &IntegrityError{
			Algorithm: Normalize(c.Algorithm),
			Got:       got,
			Accepted:  []string(c.Accepted),
		}
	}
	return nil
}

// VerifyAll checks every constraint and returns the first failure.
func VerifyAll(data []byte, constraints []Constraint) error {
	for _, c := range constraints {
		if err := Verify(data, c); err != nil {
			return err
		}
	}
	return nil
}

// IntegrityError reports a digest outside of the accepted set.
type IntegrityError struct {
	Algorithm string
	Got       string
	Accepted  []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s digest %s not in accepted set %v", e.Algorithm, e.Got, e.Accepted)
}

// Is lets errors.Is(err, ErrIntegrity) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func normalizeDigest(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
