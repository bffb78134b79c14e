package store

import (
	"context"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// Store defines the interface for database operations
type Store interface {
	// CreateUser inserts a new user; returns domain.ErrUserExists when the address is taken
	CreateUser(ctx context.Context, user *schema.User) error
	// GetUserByAddress retrieves a user by wallet address (nil when not found)
	GetUserByAddress(ctx context.Context, address string) (*schema.User, error)
	// GetUserByID retrieves a user by internal id (nil when not found)
	GetUserByID(ctx context.Context, id int64) (*schema.User, error)
	// GetFollowerIDs returns the ids of all users following the given user
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	// GetNotificationSetting returns the user's delivery preferences (defaults when absent)
	GetNotificationSetting(ctx context.Context, userID int64) (*schema.NotificationSetting, error)

	// CreatePool inserts a new donation pool in publishing state
	CreatePool(ctx context.Context, pool *schema.DonationPool) error
	// GetPoolByID retrieves a pool by its internal id (nil when not found)
	GetPoolByID(ctx context.Context, id int64) (*schema.DonationPool, error)
	// GetPoolByIDHash retrieves a pool by its pre-publication identity (nil when not found)
	GetPoolByIDHash(ctx context.Context, idHash string) (*schema.DonationPool, error)
	// GetPoolByOnChainID retrieves a published pool by its contract-assigned id (nil when not found)
	GetPoolByOnChainID(ctx context.Context, chain domain.Chain, onChainID uint64) (*schema.DonationPool, error)
	// ListPools retrieves pools ordered by creation time, newest first
	ListPools(ctx context.Context, limit, offset int) ([]*schema.DonationPool, error)
	// PublishPool transitions the pool matching idHash to published and sets
	// its on-chain identity. Returns the number of rows updated (0 when no
	// pool matches).
	PublishPool(ctx context.Context, idHash string, onChainID uint64, ownerAddress string) (int64, error)

	// InsertDonation inserts a donation row; a duplicate (chain, tx_hash,
	// log_index) is silently skipped. Returns true when a row was inserted.
	InsertDonation(ctx context.Context, donation *schema.Donation) (bool, error)
	// ListDonationsByPool retrieves donations for a pool, newest first
	ListDonationsByPool(ctx context.Context, poolID int64, limit, offset int) ([]*schema.Donation, error)

	// GetSubscriptionByOnChainID retrieves a subscription by its contract
	// identity (nil when not found)
	GetSubscriptionByOnChainID(ctx context.Context, chain domain.Chain, onChainID uint64) (*schema.Subscription, error)
	// UpsertSubscription inserts a subscription or updates the existing row
	// with the same (chain, on_chain_subscription_id)
	UpsertSubscription(ctx context.Context, sub *schema.Subscription) error
	// DeactivateSubscription sets active=false and next_payment_time=0.
	// Returns the number of rows updated.
	DeactivateSubscription(ctx context.Context, chain domain.Chain, onChainID uint64) (int64, error)
	// UpdateSubscriptionPayment updates payment bookkeeping matched by
	// (chain, on_chain_subscription_id, subscriber_address). Returns the
	// number of rows updated.
	UpdateSubscriptionPayment(ctx context.Context, chain domain.Chain, onChainID uint64, subscriber string, remainingPayments uint64, nextPaymentTime int64, active bool) (int64, error)

	// CreateNotification inserts a notification row and fills in its id
	CreateNotification(ctx context.Context, n *schema.Notification) error
	// ListNotifications retrieves a recipient's notifications, newest first
	ListNotifications(ctx context.Context, recipientID int64, limit, offset int) ([]*schema.Notification, error)
	// MarkNotificationRead flips read=true scoped to the recipient. Returns
	// the number of rows updated (0 when the row is absent or not theirs).
	MarkNotificationRead(ctx context.Context, id int64, recipientID int64) (int64, error)
}
