package polycrypt

import "fmt"

// EncryptAlgo represents a supported authenticated encryption algorithm.
type EncryptAlgo string

const (
	// EncryptAES uses AES-256-GCM with a 96-bit random nonce.
	EncryptAES EncryptAlgo = "aes-256-gcm"

	// EncryptXChaCha uses XChaCha20-Poly1305 with a 192-bit random nonce.
	EncryptXChaCha EncryptAlgo = "xchacha20-poly1305"
)

// DefaultAlgo is the algorithm used by the package-level functions and by
// processors that were not configured otherwise.
const DefaultAlgo = EncryptAES

// validEncryptAlgos contains all valid encryption algorithms.
var validEncryptAlgos = map[EncryptAlgo]bool{
	EncryptAES:     true,
	EncryptXChaCha: true,
}

// IsValidEncryptAlgo returns true if the algorithm is a known encryption algorithm.
func IsValidEncryptAlgo(algo EncryptAlgo) bool {
	return validEncryptAlgos[algo]
}

// ParseEncryptAlgo converts a configuration string into an EncryptAlgo.
// The empty string selects DefaultAlgo.
func ParseEncryptAlgo(s string) (EncryptAlgo, error) {
	if s == "" {
		return DefaultAlgo, nil
	}
	algo := EncryptAlgo(s)
	if !IsValidEncryptAlgo(algo) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return algo, nil
}
