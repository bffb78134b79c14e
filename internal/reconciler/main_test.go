package reconciler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeStore is an in-memory Store covering everything the reconciler and
// dispatcher touch. The embedded interface panics on anything else.
type fakeStore struct {
	store.Store
	mu            sync.Mutex
	nextID        int64
	users         map[int64]*schema.User
	pools         map[int64]*schema.DonationPool
	donations     []*schema.Donation
	donationKeys  map[string]bool
	subs          map[string]*schema.Subscription
	notifications []*schema.Notification
	followers     map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[int64]*schema.User),
		pools:        make(map[int64]*schema.DonationPool),
		donationKeys: make(map[string]bool),
		subs:         make(map[string]*schema.Subscription),
		followers:    make(map[int64][]int64),
	}
}

func subKey(chain domain.Chain, onChainID uint64) string {
	return fmt.Sprintf("%s|%d", chain, onChainID)
}

func (s *fakeStore) addUser(address string) *schema.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user := &schema.User{ID: s.nextID, Address: address}
	s.users[user.ID] = user
	return user
}

func (s *fakeStore) addPool(pool *schema.DonationPool) *schema.DonationPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	pool.ID = s.nextID
	s.pools[pool.ID] = pool
	return pool
}

func (s *fakeStore) notificationsFor(recipientID int64) []*schema.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*schema.Notification
	for _, n := range s.notifications {
		if n.RecipientUserID == recipientID {
			result = append(result, n)
		}
	}
	return result
}

func (s *fakeStore) GetUserByAddress(_ context.Context, address string) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if domain.SameAddress(user.Address, address) {
			return user, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id int64) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeStore) GetFollowerIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followers[userID], nil
}

func (s *fakeStore) GetNotificationSetting(_ context.Context, userID int64) (*schema.NotificationSetting, error) {
	return &schema.NotificationSetting{UserID: userID, InAppEnabled: true, EmailEnabled: true}, nil
}

func (s *fakeStore) CreateNotification(_ context.Context, n *schema.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeStore) GetPoolByID(_ context.Context, id int64) (*schema.DonationPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pools[id], nil
}

func (s *fakeStore) GetPoolByIDHash(_ context.Context, idHash string) (*schema.DonationPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range s.pools {
		if pool.IDHash == idHash {
			return pool, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetPoolByOnChainID(_ context.Context, chain domain.Chain, onChainID uint64) (*schema.DonationPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range s.pools {
		if pool.Chain == chain && pool.OnChainPoolID != nil && *pool.OnChainPoolID == onChainID {
			return pool, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) PublishPool(_ context.Context, idHash string, onChainID uint64, ownerAddress string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range s.pools {
		if pool.IDHash == idHash {
			pool.Status = domain.PoolStatusPublished
			pool.OnChainPoolID = &onChainID
			pool.OwnerAddress = &ownerAddress
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) InsertDonation(_ context.Context, donation *schema.Donation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d", donation.Chain, donation.TxHash, donation.LogIndex)
	if s.donationKeys[key] {
		return false, nil
	}
	s.donationKeys[key] = true
	s.nextID++
	donation.ID = s.nextID
	s.donations = append(s.donations, donation)
	return true, nil
}

func (s *fakeStore) GetSubscriptionByOnChainID(_ context.Context, chain domain.Chain, onChainID uint64) (*schema.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subKey(chain, onChainID)]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (s *fakeStore) UpsertSubscription(_ context.Context, sub *schema.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey(sub.Chain, sub.OnChainSubscriptionID)
	if existing, ok := s.subs[key]; ok {
		sub.ID = existing.ID
	} else {
		s.nextID++
		sub.ID = s.nextID
	}
	copied := *sub
	s.subs[key] = &copied
	return nil
}

func (s *fakeStore) DeactivateSubscription(_ context.Context, chain domain.Chain, onChainID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subKey(chain, onChainID)]
	if !ok {
		return 0, nil
	}
	sub.Active = false
	sub.NextPaymentTime = 0
	sub.UpdatedAt = time.Now()
	return 1, nil
}

func (s *fakeStore) UpdateSubscriptionPayment(_ context.Context, chain domain.Chain, onChainID uint64, subscriber string, remainingPayments uint64, nextPaymentTime int64, active bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subKey(chain, onChainID)]
	if !ok || sub.SubscriberAddress != subscriber {
		return 0, nil
	}
	sub.RemainingPayments = remainingPayments
	sub.NextPaymentTime = nextPaymentTime
	sub.Active = active
	sub.UpdatedAt = time.Now()
	return 1, nil
}
