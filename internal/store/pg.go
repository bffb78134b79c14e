package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.User{},
		&schema.Follow{},
		&schema.DonationPool{},
		&schema.Donation{},
		&schema.Subscription{},
		&schema.Notification{},
		&schema.NotificationSetting{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// CreateUser inserts a new user
func (s *pgStore) CreateUser(ctx context.Context, user *schema.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByAddress retrieves a user by wallet address
func (s *pgStore) GetUserByAddress(ctx context.Context, address string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by address: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by internal id
func (s *pgStore) GetUserByID(ctx context.Context, id int64) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetFollowerIDs returns the ids of all users following the given user
func (s *pgStore) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&schema.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return ids, nil
}

// GetNotificationSetting returns the user's delivery preferences.
// Users without an explicit row get both channels enabled.
func (s *pgStore) GetNotificationSetting(ctx context.Context, userID int64) (*schema.NotificationSetting, error) {
	var setting schema.NotificationSetting
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &schema.NotificationSetting{UserID: userID, InAppEnabled: true, EmailEnabled: true}, nil
		}
		return nil, fmt.Errorf("failed to get notification setting: %w", err)
	}
	return &setting, nil
}

// CreatePool inserts a new donation pool in publishing state
func (s *pgStore) CreatePool(ctx context.Context, pool *schema.DonationPool) error {
	if err := s.db.WithContext(ctx).Create(pool).Error; err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

// GetPoolByID retrieves a pool by its internal id
func (s *pgStore) GetPoolByID(ctx context.Context, id int64) (*schema.DonationPool, error) {
	var pool schema.DonationPool
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	return &pool, nil
}

// GetPoolByIDHash retrieves a pool by its pre-publication identity
func (s *pgStore) GetPoolByIDHash(ctx context.Context, idHash string) (*schema.DonationPool, error) {
	var pool schema.DonationPool
	err := s.db.WithContext(ctx).Where("id_hash = ?", idHash).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pool by id hash: %w", err)
	}
	return &pool, nil
}

// GetPoolByOnChainID retrieves a published pool by its contract-assigned id
func (s *pgStore) GetPoolByOnChainID(ctx context.Context, chain domain.Chain, onChainID uint64) (*schema.DonationPool, error) {
	var pool schema.DonationPool
	err := s.db.WithContext(ctx).
		Where("chain = ? AND on_chain_pool_id = ?", string(chain), onChainID).
		First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pool by on-chain id: %w", err)
	}
	return &pool, nil
}

// ListPools retrieves pools ordered by creation time, newest first
func (s *pgStore) ListPools(ctx context.Context, limit, offset int) ([]*schema.DonationPool, error) {
	var pools []*schema.DonationPool
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&pools).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return pools, nil
}

// PublishPool transitions the pool matching idHash to published.
// Setting the same on-chain identity twice leaves the row unchanged,
// which keeps replayed PoolCreated events idempotent.
func (s *pgStore) PublishPool(ctx context.Context, idHash string, onChainID uint64, ownerAddress string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.DonationPool{}).
		Where("id_hash = ?", idHash).
		Updates(map[string]interface{}{
			"status":           domain.PoolStatusPublished,
			"on_chain_pool_id": onChainID,
			"owner_address":    ownerAddress,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to publish pool: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// InsertDonation inserts a donation row, skipping duplicates of the same
// on-chain event
func (s *pgStore) InsertDonation(ctx context.Context, donation *schema.Donation) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain"}, {Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).
		Create(donation)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert donation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListDonationsByPool retrieves donations for a pool, newest first
func (s *pgStore) ListDonationsByPool(ctx context.Context, poolID int64, limit, offset int) ([]*schema.Donation, error) {
	var donations []*schema.Donation
	err := s.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("donated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

// GetSubscriptionByOnChainID retrieves a subscription by its contract identity
func (s *pgStore) GetSubscriptionByOnChainID(ctx context.Context, chain domain.Chain, onChainID uint64) (*schema.Subscription, error) {
	var sub schema.Subscription
	err := s.db.WithContext(ctx).
		Where("chain = ? AND on_chain_subscription_id = ?", string(chain), onChainID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription by on-chain id: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription inserts a subscription or updates the existing row
// with the same on-chain identity
func (s *pgStore) UpsertSubscription(ctx context.Context, sub *schema.Subscription) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chain"}, {Name: "on_chain_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"pool_id", "subscriber_address", "token_address", "amount",
				"interval_seconds", "remaining_payments", "next_payment_time",
				"active", "expires_at", "updated_at",
			}),
		}).
		Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// DeactivateSubscription sets active=false and next_payment_time=0
func (s *pgStore) DeactivateSubscription(ctx context.Context, chain domain.Chain, onChainID uint64) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Subscription{}).
		Where("chain = ? AND on_chain_subscription_id = ?", string(chain), onChainID).
		Updates(map[string]interface{}{
			"active":            false,
			"next_payment_time": 0,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate subscription: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UpdateSubscriptionPayment updates payment bookkeeping matched by
// (chain, on_chain_subscription_id, subscriber_address)
func (s *pgStore) UpdateSubscriptionPayment(ctx context.Context, chain domain.Chain, onChainID uint64, subscriber string, remainingPayments uint64, nextPaymentTime int64, active bool) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Subscription{}).
		Where("chain = ? AND on_chain_subscription_id = ? AND subscriber_address = ?",
			string(chain), onChainID, subscriber).
		Updates(map[string]interface{}{
			"remaining_payments": remainingPayments,
			"next_payment_time":  nextPaymentTime,
			"active":             active,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update subscription payment: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CreateNotification inserts a notification row
func (s *pgStore) CreateNotification(ctx context.Context, n *schema.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications retrieves a recipient's notifications, newest first
func (s *pgStore) ListNotifications(ctx context.Context, recipientID int64, limit, offset int) ([]*schema.Notification, error) {
	var notifications []*schema.Notification
	err := s.db.WithContext(ctx).
		Where("recipient_user_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flips read=true scoped to the recipient
func (s *pgStore) MarkNotificationRead(ctx context.Context, id int64, recipientID int64) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Notification{}).
		Where("id = ? AND recipient_user_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	return result.RowsAffected, nil
}
