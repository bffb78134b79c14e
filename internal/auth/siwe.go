package auth

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

var (
	siweAddressPattern = regexp.MustCompile(`(?m)^(0x[0-9a-fA-F]{40})$`)
	siweNoncePattern   = regexp.MustCompile(`(?m)^Nonce: (\S+)$`)
)

// VerifySIWE validates an EIP-4361 sign-in message against its signature
// and the expected single-use nonce. It fails closed: any parse or
// recovery failure is a hard rejection.
//
// On success it returns the EIP-55 checksummed address recovered from the
// signature, which is guaranteed to equal the address stated in the message.
func VerifySIWE(message, signature, expectedNonce string) (string, error) {
	nonce, ok := parseSIWEField(message, siweNoncePattern)
	if !ok || nonce != expectedNonce {
		return "", domain.ErrNonceMismatch
	}

	stated, ok := parseSIWEField(message, siweAddressPattern)
	if !ok {
		return "", domain.ErrInvalidSignature
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", domain.ErrInvalidSignature
	}

	// Wallets produce signatures with V in {27, 28}; go-ethereum expects {0, 1}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", domain.ErrInvalidSignature
	}

	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	if !domain.SameAddress(recovered, stated) {
		return "", domain.ErrInvalidSignature
	}

	return recovered, nil
}

func parseSIWEField(message string, pattern *regexp.Regexp) (string, bool) {
	match := pattern.FindStringSubmatch(message)
	if len(match) != 2 {
		return "", false
	}
	return match[1], true
}
