package domain

import (
	"crypto/rand"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oklog/ulid/v2"
)

// NewPoolIDHash mints the server-generated pre-publication identity for a
// donation pool: the keccak256 hash of a fresh ULID, hex encoded with a
// 0x prefix so it can be passed to the contract as bytes32.
func NewPoolIDHash() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return crypto.Keccak256Hash([]byte(id.String())).Hex()
}
