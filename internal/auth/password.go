package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrHashFormat is returned when a stored credential is not a
// well-formed argon2id PHC string.
var ErrHashFormat = errors.New("auth: malformed password hash")

// hashParams are the argon2id cost settings. New hashes use
// defaultParams; verification reads the settings back out of the
// stored string, so costs can be raised later without invalidating
// existing credentials.
type hashParams struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
}

// defaultParams targets interactive logins: 64 MiB and 3 passes keeps
// verification well under a second on modest hardware while staying
// inside the recommended cost range for argon2id.
var defaultParams = hashParams{memory: 64 * 1024, time: 3, threads: 1}

const (
	saltBytes = 16
	keyBytes  = 32
)

// HashPassword derives an argon2id key from the password and encodes
// it as a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>.
// The salt is fresh per call, so equal passwords never share a hash.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	p := defaultParams
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, keyBytes)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the stored PHC
// string. The comparison is constant-time. Cost settings come from the
// stored string, not from defaultParams, so old hashes keep verifying
// after a cost bump.
func VerifyPassword(password, stored string) (bool, error) {
	salt, want, p, err := parsePHC(stored)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// parsePHC splits a stored hash into salt, derived key, and cost
// settings. Only the argon2id variant is accepted.
func parsePHC(stored string) (salt, key []byte, p hashParams, err error) {
	rest, ok := strings.CutPrefix(stored, "$argon2id$")
	if !ok {
		return nil, nil, p, ErrHashFormat
	}

	// Remaining fields: v=19 $ m=..,t=..,p=.. $ salt $ key
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return nil, nil, p, ErrHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, p, fmt.Errorf("%w: bad version field", ErrHashFormat)
	}

	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, p, fmt.Errorf("%w: bad cost field", ErrHashFormat)
	}

	salt, err = base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil {
		return nil, nil, p, fmt.Errorf("%w: bad salt encoding", ErrHashFormat)
	}

	key, err = base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil {
		return nil, nil, p, fmt.Errorf("%w: bad key encoding", ErrHashFormat)
	}

	return salt, key, p, nil
}
