package domain

import "time"

// EventKind identifies the contract event a ChainEvent variant carries
type EventKind string

const (
	EventKindPoolCreated                EventKind = "pool_created"
	EventKindDonationReceived           EventKind = "donation_received"
	EventKindDonationFailed             EventKind = "donation_failed"
	EventKindSubscriptionCreated        EventKind = "subscription_created"
	EventKindSubscriptionPaymentSuccess EventKind = "subscription_payment_success"
	EventKindSubscriptionPaymentFailure EventKind = "subscription_payment_failure"
	EventKindUnsubscribed               EventKind = "unsubscribed"
)

// EventMeta carries the on-chain identity shared by every event variant.
// (Chain, TxHash, LogIndex) uniquely identifies one emitted log and is
// the dedup key for at-least-once delivery.
type EventMeta struct {
	Chain       Chain     `json:"chain"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint      `json:"log_index"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChainEvent is the decoded form of a contract log. Variants are decoded
// at the transport boundary so the reconciler can type-switch over them
// instead of inspecting raw argument lists.
type ChainEvent interface {
	Kind() EventKind
	Meta() EventMeta
}

// PoolCreated is emitted when a donation pool is published on chain
type PoolCreated struct {
	EventMeta
	IDHash        string `json:"id_hash"`
	OnChainPoolID uint64 `json:"on_chain_pool_id"`
	OwnerAddress  string `json:"owner_address"`
}

// DonationReceived is emitted on a successful donation
type DonationReceived struct {
	EventMeta
	OnChainPoolID uint64 `json:"on_chain_pool_id"`
	DonorAddress  string `json:"donor_address"`
	TokenAddress  string `json:"token_address"`
	Amount        string `json:"amount"`
	Message       string `json:"message"`
	Recurring     bool   `json:"recurring"`
}

// DonationFailed is emitted when a donation transfer reverts inside the contract
type DonationFailed struct {
	EventMeta
	OnChainPoolID uint64 `json:"on_chain_pool_id"`
	DonorAddress  string `json:"donor_address"`
	TokenAddress  string `json:"token_address"`
	Amount        string `json:"amount"`
}

// SubscriptionCreated is emitted when a recurring donation is set up
type SubscriptionCreated struct {
	EventMeta
	OnChainSubscriptionID uint64 `json:"on_chain_subscription_id"`
	OnChainPoolID         uint64 `json:"on_chain_pool_id"`
	SubscriberAddress     string `json:"subscriber_address"`
	TokenAddress          string `json:"token_address"`
	Amount                string `json:"amount"`
	IntervalSeconds       uint64 `json:"interval_seconds"`
	RemainingPayments     uint64 `json:"remaining_payments"`
	NextPaymentTime       int64  `json:"next_payment_time"`
	ExpiresAt             int64  `json:"expires_at"`
}

// SubscriptionPaymentSucceeded is emitted on each successful recurring payment
type SubscriptionPaymentSucceeded struct {
	EventMeta
	OnChainSubscriptionID uint64 `json:"on_chain_subscription_id"`
	SubscriberAddress     string `json:"subscriber_address"`
	RemainingPayments     uint64 `json:"remaining_payments"`
	NextPaymentTime       int64  `json:"next_payment_time"`
}

// SubscriptionPaymentFailed is emitted when a recurring payment cannot be collected
type SubscriptionPaymentFailed struct {
	EventMeta
	OnChainSubscriptionID uint64 `json:"on_chain_subscription_id"`
	SubscriberAddress     string `json:"subscriber_address"`
}

// Unsubscribed is emitted when a subscriber cancels
type Unsubscribed struct {
	EventMeta
	OnChainSubscriptionID uint64 `json:"on_chain_subscription_id"`
	SubscriberAddress     string `json:"subscriber_address"`
}

func (e PoolCreated) Kind() EventKind                  { return EventKindPoolCreated }
func (e DonationReceived) Kind() EventKind             { return EventKindDonationReceived }
func (e DonationFailed) Kind() EventKind               { return EventKindDonationFailed }
func (e SubscriptionCreated) Kind() EventKind          { return EventKindSubscriptionCreated }
func (e SubscriptionPaymentSucceeded) Kind() EventKind { return EventKindSubscriptionPaymentSuccess }
func (e SubscriptionPaymentFailed) Kind() EventKind    { return EventKindSubscriptionPaymentFailure }
func (e Unsubscribed) Kind() EventKind                 { return EventKindUnsubscribed }

func (m EventMeta) Meta() EventMeta { return m }
