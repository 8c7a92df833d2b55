package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Lower bounds accepted both for a hasher's own Config and for the
// parameters decoded from a stored hash.
const (
	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// maxInputBytes bounds the work an attacker can force through argon2 with a
// single oversized password. Policy limits registration passwords far below
// it; the cap also covers LoginLookup callers that skip Policy.
const maxInputBytes = 1024

var (
	errInputTooLong = errors.New("password: input exceeds 1024 bytes")
	errEmptyInput   = errors.New("password: empty input")
	errMalformed    = errors.New("password: malformed argon2id hash")
)

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTime:
		return errors.New("password: time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password: parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	}
	return nil
}

// Argon2 hashes registration passwords before they are held in a session
// or handed to the user repository. Safe for concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns the PHC-encoded argon2id hash of plain. The bytes of plain
// are hashed as given, without Unicode normalization.
func (a *Argon2) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errEmptyInput
	}
	if len(plain) > maxInputBytes {
		return "", errInputTooLong
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	h := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
	}
	h.key = h.derive(plain, a.cfg.KeyLength)
	return h.String(), nil
}

// Verify reports whether plain matches encoded. The comparison runs with the
// parameters recorded in encoded, so hashes made under an older Config keep
// verifying. Repository implementations use it to back LoginLookup.
func (a *Argon2) Verify(plain, encoded string) (bool, error) {
	if len(plain) > maxInputBytes {
		return false, errInputTooLong
	}
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got := h.derive(plain, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// phc is one decoded $argon2id$ string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phc) derive(plain string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plain), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

var b64 = base64.RawStdEncoding

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

// decodePHC parses encoded and rejects parameters weaker than the package
// minimums so a tampered hash cannot make Verify cheap.
func decodePHC(encoded string) (phc, error) {
	var h phc
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return h, errMalformed
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, errMalformed
	}
	if version != argon2.Version {
		return h, fmt.Errorf("password: unsupported argon2 version %d", version)
	}

	var (
		p    uint32
		rest string
	)
	n, _ := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d%s", &h.memory, &h.time, &p, &rest)
	if n != 3 || p > 255 {
		return h, errMalformed
	}
	h.parallelism = uint8(p)
	if h.memory < minMemoryKB || h.time < minTime || h.parallelism < minParallelism {
		return h, errMalformed
	}

	var err error
	if h.salt, err = decodeSegment(fields[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return h, errMalformed
	}
	if h.key, err = decodeSegment(fields[5]); err != nil || len(h.key) < int(minKeyLength) {
		return h, errMalformed
	}
	return h, nil
}

// decodeSegment accepts both the unpadded PHC form and padded base64 written
// by other argon2 libraries.
func decodeSegment(s string) ([]byte, error) {
	return b64.DecodeString(strings.TrimRight(s, "="))
}
