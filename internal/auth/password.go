package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// UnauthenticatedMagic disables password checking entirely when set as
// SOLVENCY_PASSWORD_HASH, per spec.md §6's environment-variable contract.
const UnauthenticatedMagic = "DANGEROUSLY_ALLOW_UNAUTHENTICATED_USERS"

// argon2Params holds the cost parameters encoded in a PHC-format Argon2id
// hash string ("$argon2id$v=19$m=...,t=...,p=...$salt$hash").
type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
}

// VerifyPassword checks password against an Argon2id PHC-format hash,
// returning false (not an error) on any malformed-hash condition, matching
// original_source/src/auth.rs's verify_password fail-closed behavior.
func VerifyPassword(password, encodedHash string) bool {
	params, salt, hash, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

func decodeArgon2Hash(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: not a PHC argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: malformed version field: %w", err)
	}
	if version != argon2.Version {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: unsupported argon2 version %d", version)
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: malformed params field: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: malformed salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, fmt.Errorf("auth: malformed hash: %w", err)
	}

	return p, salt, hash, nil
}
