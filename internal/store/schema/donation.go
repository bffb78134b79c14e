package schema

import (
	"time"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

// Donation represents the donations table. Rows are created exclusively
// from reconciled on-chain events, never from direct user input. The
// unique index over (chain, tx_hash, log_index) guarantees exactly-once
// persistence under at-least-once event delivery.
type Donation struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// PoolID references the local donation pool
	PoolID int64 `gorm:"column:pool_id;not null;index"`
	// DonorAddress is the wallet that sent the donation
	DonorAddress string `gorm:"column:donor_address;not null;type:text;index"`
	// DonorUserID is the donor's profile if the address is registered (nil otherwise)
	DonorUserID *int64 `gorm:"column:donor_user_id"`
	// TokenAddress is the ERC20 token used (zero address for native currency)
	TokenAddress string `gorm:"column:token_address;not null;type:text"`
	// Amount is the donated amount in the token's smallest unit (string to support uint256)
	Amount string `gorm:"column:amount;not null;type:text"`
	// Message is the optional donor message
	Message string `gorm:"column:message;type:text"`
	// Recurring marks donations made through a subscription payment
	Recurring bool `gorm:"column:recurring;not null;default:false"`
	// Chain, TxHash and LogIndex identify the on-chain event this row mirrors
	Chain    domain.Chain `gorm:"column:chain;not null;type:text;uniqueIndex:idx_donations_event,priority:1"`
	TxHash   string       `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_donations_event,priority:2"`
	LogIndex uint         `gorm:"column:log_index;not null;uniqueIndex:idx_donations_event,priority:3"`
	// BlockNumber is the block the event was emitted in
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	// DonatedAt is when the listener observed the event, not the block
	// timestamp; log subscriptions do not carry the header time
	DonatedAt time.Time `gorm:"column:donated_at;not null"`
	// CreatedAt is the local insertion timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Pool  *DonationPool `gorm:"foreignKey:PoolID"`
	Donor *User         `gorm:"foreignKey:DonorUserID"`
}

// TableName specifies the table name for the Donation model
func (Donation) TableName() string {
	return "donations"
}
