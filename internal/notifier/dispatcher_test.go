package notifier

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// dispatcherStore fakes the store operations the dispatcher touches
type dispatcherStore struct {
	store.Store
	mu            sync.Mutex
	users         map[int64]*schema.User
	settings      map[int64]*schema.NotificationSetting
	followers     map[int64][]int64
	notifications []*schema.Notification
}

func newDispatcherStore() *dispatcherStore {
	return &dispatcherStore{
		users:     make(map[int64]*schema.User),
		settings:  make(map[int64]*schema.NotificationSetting),
		followers: make(map[int64][]int64),
	}
}

func (s *dispatcherStore) GetUserByID(_ context.Context, id int64) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *dispatcherStore) GetFollowerIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followers[userID], nil
}

func (s *dispatcherStore) GetNotificationSetting(_ context.Context, userID int64) (*schema.NotificationSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if setting, ok := s.settings[userID]; ok {
		return setting, nil
	}
	return &schema.NotificationSetting{UserID: userID, InAppEnabled: true, EmailEnabled: true}, nil
}

func (s *dispatcherStore) CreateNotification(_ context.Context, n *schema.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = int64(len(s.notifications) + 1)
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *dispatcherStore) notificationsFor(recipientID int64) []*schema.Notification {
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

// fakeEmailPublisher records enqueued jobs
type fakeEmailPublisher struct {
	mu   sync.Mutex
	jobs []*EmailJob
}

func (p *fakeEmailPublisher) PublishEmail(_ context.Context, job *EmailJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *fakeEmailPublisher) Close() {}

func testPool(ownerID int64) *schema.DonationPool {
	return &schema.DonationPool{
		ID:          1,
		IDHash:      "0xabc",
		Chain:       domain.ChainEthereumMainnet,
		Title:       "Community Garden",
		OwnerUserID: ownerID,
	}
}

func testDonation() *schema.Donation {
	return &schema.Donation{
		PoolID:       1,
		DonorAddress: "0x1111111111111111111111111111111111111111",
		TokenAddress: "0x2222222222222222222222222222222222222222",
		Amount:       "500",
		TxHash:       "0xbbb",
	}
}

// fan-out delivers to every follower except the actor; StopAndWait
// drains the pool so assertions see the full result
func TestDonationReceivedFanOut(t *testing.T) {
	ctx := context.Background()
	st := newDispatcherStore()
	st.users[1] = &schema.User{ID: 1, Address: "0xaaa", Username: "owner"}
	st.users[2] = &schema.User{ID: 2, Address: "0x1111111111111111111111111111111111111111", Username: "carol"}
	st.users[3] = &schema.User{ID: 3, Address: "0xccc"}
	st.users[4] = &schema.User{ID: 4, Address: "0xddd"}
	st.followers[1] = []int64{2, 3, 4} // carol follows the pool owner too

	dispatcher := NewDispatcher(st, NewRegistry(), nil, 2)
	dispatcher.DonationReceived(ctx, testPool(1), testDonation(), st.users[2])
	dispatcher.Stop()

	// owner notification plus donor confirmation
	require.Len(t, st.notificationsFor(1), 1)
	donorNotifications := st.notificationsFor(2)
	require.Len(t, donorNotifications, 1)
	// carol acted, so she only gets the confirmation, not the fan-out copy
	assert.Equal(t, domain.NotificationTypeDonationConfirmed, donorNotifications[0].Type)

	assert.Len(t, st.notificationsFor(3), 1)
	assert.Len(t, st.notificationsFor(4), 1)
}

func TestNotifyRespectsDisabledSettings(t *testing.T) {
	ctx := context.Background()
	st := newDispatcherStore()
	st.users[1] = &schema.User{ID: 1, Address: "0xaaa", Email: "owner@example.com"}
	st.settings[1] = &schema.NotificationSetting{UserID: 1, InAppEnabled: false, EmailEnabled: false}

	email := &fakeEmailPublisher{}
	dispatcher := NewDispatcher(st, NewRegistry(), email, 2)
	defer dispatcher.Stop()

	dispatcher.DonationReceived(ctx, testPool(1), testDonation(), nil)

	assert.Empty(t, st.notificationsFor(1))
	assert.Empty(t, email.jobs)
}

func TestNotifyEnqueuesEmail(t *testing.T) {
	ctx := context.Background()
	st := newDispatcherStore()
	st.users[1] = &schema.User{ID: 1, Address: "0xaaa", Email: "owner@example.com"}

	email := &fakeEmailPublisher{}
	dispatcher := NewDispatcher(st, NewRegistry(), email, 2)
	defer dispatcher.Stop()

	dispatcher.DonationReceived(ctx, testPool(1), testDonation(), nil)

	require.Len(t, email.jobs, 1)
	job := email.jobs[0]
	assert.Equal(t, int64(1), job.RecipientUserID)
	assert.Equal(t, "owner@example.com", job.To)
	assert.Equal(t, domain.NotificationTypeDonationReceived, job.Type)
}

// users without an email address are silently skipped for email delivery
func TestNotifySkipsEmailWithoutAddress(t *testing.T) {
	ctx := context.Background()
	st := newDispatcherStore()
	st.users[1] = &schema.User{ID: 1, Address: "0xaaa"}

	email := &fakeEmailPublisher{}
	dispatcher := NewDispatcher(st, NewRegistry(), email, 2)
	defer dispatcher.Stop()

	dispatcher.DonationReceived(ctx, testPool(1), testDonation(), nil)

	assert.Len(t, st.notificationsFor(1), 1)
	assert.Empty(t, email.jobs)
}

func TestNotifyPushesToLiveStream(t *testing.T) {
	ctx := context.Background()
	st := newDispatcherStore()
	st.users[1] = &schema.User{ID: 1, Address: "0xaaa"}

	registry := NewRegistry()
	stream := registry.Register(1)

	dispatcher := NewDispatcher(st, registry, nil, 2)
	defer dispatcher.Stop()

	dispatcher.PoolPublished(ctx, testPool(1))

	select {
	case n := <-stream:
		assert.Equal(t, domain.NotificationTypePoolPublished, n.Type)
		assert.NotZero(t, n.ID) // persisted before the push
	default:
		t.Fatal("expected a live notification")
	}
}
