package schema

import (
	"time"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

// DonationPool represents the donation_pools table. A pool is created
// locally with a server-generated IDHash before the on-chain publish
// transaction; OnChainPoolID and OwnerAddress are only set once the
// matching PoolCreated event has been reconciled.
type DonationPool struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// IDHash is the server-generated pre-publication identity, passed to
	// the contract call and echoed back in the PoolCreated event
	IDHash string `gorm:"column:id_hash;not null;uniqueIndex;type:text"`
	// Chain identifies the network the pool is published on
	Chain domain.Chain `gorm:"column:chain;not null;type:text"`
	// Title is the pool's display title
	Title string `gorm:"column:title;not null;type:text"`
	// Description is the pool's long-form description
	Description string `gorm:"column:description;type:text"`
	// Status is one of publishing, published, errored
	Status domain.PoolStatus `gorm:"column:status;not null;type:text;default:'publishing'"`
	// OnChainPoolID is the identifier assigned by the contract (nil until published)
	OnChainPoolID *uint64 `gorm:"column:on_chain_pool_id;index:idx_pools_chain_onchain_id"`
	// OwnerAddress is the on-chain owner (nil until published)
	OwnerAddress *string `gorm:"column:owner_address;type:text"`
	// OwnerUserID is the local creator of the pool
	OwnerUserID int64 `gorm:"column:owner_user_id;not null;index"`
	// CreatedAt is the local creation timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Owner     *User      `gorm:"foreignKey:OwnerUserID"`
	Donations []Donation `gorm:"foreignKey:PoolID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the DonationPool model
func (DonationPool) TableName() string {
	return "donation_pools"
}
