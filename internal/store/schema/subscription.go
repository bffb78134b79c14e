package schema

import (
	"time"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

// Subscription represents the subscriptions table, mirroring a recurring
// donation set up on chain. Rows are never deleted, only deactivated.
type Subscription struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain and OnChainSubscriptionID identify the subscription on the contract
	Chain                 domain.Chain `gorm:"column:chain;not null;type:text;uniqueIndex:idx_subscriptions_onchain,priority:1"`
	OnChainSubscriptionID uint64       `gorm:"column:on_chain_subscription_id;not null;uniqueIndex:idx_subscriptions_onchain,priority:2"`
	// PoolID references the local donation pool
	PoolID int64 `gorm:"column:pool_id;not null;index"`
	// SubscriberAddress is the wallet paying the recurring donation
	SubscriberAddress string `gorm:"column:subscriber_address;not null;type:text;index"`
	// TokenAddress is the ERC20 token used for payments
	TokenAddress string `gorm:"column:token_address;not null;type:text"`
	// Amount is the per-payment amount in the token's smallest unit
	Amount string `gorm:"column:amount;not null;type:text"`
	// IntervalSeconds is the payment interval
	IntervalSeconds uint64 `gorm:"column:interval_seconds;not null"`
	// RemainingPayments counts down with each successful payment
	RemainingPayments uint64 `gorm:"column:remaining_payments;not null"`
	// NextPaymentTime is the unix time of the next due payment (0 when cancelled)
	NextPaymentTime int64 `gorm:"column:next_payment_time;not null"`
	// Active is false after unsubscribe or a failed payment
	Active bool `gorm:"column:active;not null;default:true"`
	// ExpiresAt is the unix time the subscription runs out
	ExpiresAt int64 `gorm:"column:expires_at;not null"`
	// CreatedAt is the local insertion timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
	// UpdatedAt is bumped on every reconciled mutation
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`

	// Associations
	Pool *DonationPool `gorm:"foreignKey:PoolID"`
}

// TableName specifies the table name for the Subscription model
func (Subscription) TableName() string {
	return "subscriptions"
}
