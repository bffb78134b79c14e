package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainPolygonMainnet  Chain = "eip155:137"
	ChainBaseMainnet     Chain = "eip155:8453"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainPolygonMainnet ||
		chain == ChainBaseMainnet
}

// PoolStatus represents the lifecycle state of a donation pool
type PoolStatus string

const (
	// PoolStatusPublishing means the pool row exists locally but the
	// matching on-chain creation event has not been observed yet
	PoolStatusPublishing PoolStatus = "publishing"
	// PoolStatusPublished means the on-chain creation event was reconciled
	PoolStatusPublished PoolStatus = "published"
	// PoolStatusErrored means the on-chain publication failed
	PoolStatusErrored PoolStatus = "errored"
)

// NotificationType classifies notifications for templating and filtering
type NotificationType string

const (
	NotificationTypeDonationReceived    NotificationType = "donation_received"
	NotificationTypeDonationConfirmed   NotificationType = "donation_confirmed"
	NotificationTypePoolPublished       NotificationType = "pool_published"
	NotificationTypeSubscriptionStarted NotificationType = "subscription_started"
	NotificationTypeSubscriptionPayment NotificationType = "subscription_payment"
	NotificationTypeSubscriptionEnded   NotificationType = "subscription_ended"
)

// NormalizeAddress normalizes an EVM address to its EIP-55 checksum form
func NormalizeAddress(address string) string {
	if strings.HasPrefix(address, "0x") {
		return common.HexToAddress(address).String()
	}
	return address
}

// SameAddress compares two EVM addresses ignoring checksum casing
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
