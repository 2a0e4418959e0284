package daemonkey

import (
	"crypto/rand"
	"fmt"

	"github.com/pterodactyl/panel/internal/model"
)

// SecretLength is the number of random characters following the internal
// key prefix.
const SecretLength = 40

const secretAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateSecret returns a new opaque daemon key secret: the internal key
// prefix followed by SecretLength random alphanumeric characters.
func GenerateSecret() (string, error) {
	out := make([]byte, 0, SecretLength)
	buf := make([]byte, SecretLength)
	// 248 is the largest multiple of 62 below 256; higher bytes are skipped
	// so every character is equally likely.
	for len(out) < SecretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate daemon key secret: %w", err)
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == SecretLength {
				break
			}
		}
	}
	return model.InternalKeyPrefix + string(out), nil
}
