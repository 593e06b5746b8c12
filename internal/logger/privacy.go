package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const defaultHashSalt = "default-salt-change-in-production"

var hashSalt = defaultHashSalt

// InitHashSalt loads the hashing salt from LOG_HASH_SALT.
// In production, set LOG_HASH_SALT to a random value of at least 32 chars.
func InitHashSalt() {
	if salt := os.Getenv("LOG_HASH_SALT"); salt != "" {
		hashSalt = salt
		return
	}
	Log.Warn().Msg("LOG_HASH_SALT not set, using default salt")
	hashSalt = defaultHashSalt
}

// InitHashSaltForTesting sets a fixed salt.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashWalletID creates a privacy-preserving hash of a wallet ID.
// This allows correlating ledger activity without exposing wallet identifiers.
func HashWalletID(walletID string) string {
	data := fmt.Sprintf("%s:%s", walletID, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// First 8 characters are enough for correlation.
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeText is a general-purpose sanitizer for any user-provided text
// such as merchant names or notes.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}

// SanitizeDescription redacts a free-text note but keeps its shape.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(strings.Fields(desc)), len(desc))
}
