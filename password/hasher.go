package password

import "errors"

// ErrUnknownHashFormat is returned when no verifier recognizes a hash.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Verifier checks a password against one hash format.
type Verifier interface {
	Handles(encodedHash string) bool
	Verify(password, encodedHash string) (bool, error)
}

// Hasher hashes new passwords with Argon2id and verifies hashes in any
// format it has a verifier for.
type Hasher struct {
	primary *Argon2
	legacy  []Verifier
}

// NewHasher returns a hasher that writes Argon2id and also verifies the
// given legacy formats.
func NewHasher(primary *Argon2, legacy ...Verifier) (*Hasher, error) {
	if primary == nil {
		return nil, errors.New("password: primary hasher is required")
	}
	return &Hasher{primary: primary, legacy: legacy}, nil
}

// Hash hashes password with the primary Argon2id hasher.
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the hash format.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if h.primary.Handles(encodedHash) {
		return h.primary.Verify(password, encodedHash)
	}
	for _, v := range h.legacy {
		if v.Handles(encodedHash) {
			return v.Verify(password, encodedHash)
		}
	}
	return false, ErrUnknownHashFormat
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful login: legacy formats always, Argon2id when parameters are weaker.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	if !h.primary.Handles(encodedHash) {
		return true
	}
	upgrade, err := h.primary.NeedsUpgrade(encodedHash)
	return err != nil || upgrade
}
