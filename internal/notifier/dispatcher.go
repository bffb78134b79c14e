package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// Dispatcher fans reconciled events out to interested users. Each
// notification is saved first so it has a durable id, then pushed to the
// recipient's live stream and, when enabled, enqueued for email delivery.
type Dispatcher struct {
	store    store.Store
	registry *Registry
	email    EmailPublisher
	pool     pond.Pool
}

// NewDispatcher creates a dispatcher with a bounded fan-out worker pool
func NewDispatcher(st store.Store, registry *Registry, email EmailPublisher, fanoutWorkers int) *Dispatcher {
	return &Dispatcher{
		store:    st,
		registry: registry,
		email:    email,
		pool:     pond.NewPool(fanoutWorkers),
	}
}

// Stop drains the fan-out pool
func (d *Dispatcher) Stop() {
	d.pool.StopAndWait()
}

// DonationReceived notifies the pool owner, confirms to the donor when
// they are a registered user, and fans out to the owner's followers
func (d *Dispatcher) DonationReceived(ctx context.Context, pool *schema.DonationPool, donation *schema.Donation, donor *schema.User) {
	donorName := donation.DonorAddress
	var actorID *int64
	if donor != nil {
		donorName = donor.DisplayName()
		actorID = &donor.ID
	}

	metadata := metadataJSON(map[string]any{
		"pool_id_hash": pool.IDHash,
		"amount":       donation.Amount,
		"token":        donation.TokenAddress,
		"tx_hash":      donation.TxHash,
	})

	d.notify(ctx, pool.OwnerUserID, actorID, domain.NotificationTypeDonationReceived,
		"New donation",
		renderTemplate("{display_name} donated to your pool", donorName),
		metadata)

	if donor != nil {
		d.notify(ctx, donor.ID, nil, domain.NotificationTypeDonationConfirmed,
			"Donation confirmed",
			fmt.Sprintf("Your donation to %q was confirmed on chain", pool.Title),
			metadata)
	}

	d.fanOutToFollowers(ctx, pool.OwnerUserID, actorID, domain.NotificationTypeDonationReceived,
		"Pool activity",
		renderTemplate("{display_name} donated to a pool you follow", donorName),
		metadata)
}

// PoolPublished notifies the owner that their pool is live and fans out
// to the owner's followers
func (d *Dispatcher) PoolPublished(ctx context.Context, pool *schema.DonationPool) {
	metadata := metadataJSON(map[string]any{"pool_id_hash": pool.IDHash})

	d.notify(ctx, pool.OwnerUserID, nil, domain.NotificationTypePoolPublished,
		"Pool published",
		fmt.Sprintf("Your pool %q is now live on chain", pool.Title),
		metadata)

	owner, err := d.store.GetUserByID(ctx, pool.OwnerUserID)
	if err != nil || owner == nil {
		logger.WarnCtx(ctx, "Skipping follower fan-out, owner not resolvable",
			zap.Int64("ownerUserID", pool.OwnerUserID), zap.Error(err))
		return
	}

	d.fanOutToFollowers(ctx, pool.OwnerUserID, nil, domain.NotificationTypePoolPublished,
		"New pool",
		renderTemplate("{display_name} published a new pool", owner.DisplayName()),
		metadata)
}

// SubscriptionStarted notifies the pool owner about a new recurring donor
func (d *Dispatcher) SubscriptionStarted(ctx context.Context, pool *schema.DonationPool, sub *schema.Subscription, subscriber *schema.User) {
	d.notifySubscription(ctx, pool, sub, subscriber, domain.NotificationTypeSubscriptionStarted,
		"New subscription", "{display_name} started a recurring donation to your pool")
}

// SubscriptionPayment notifies the pool owner about a collected payment
func (d *Dispatcher) SubscriptionPayment(ctx context.Context, pool *schema.DonationPool, sub *schema.Subscription, subscriber *schema.User) {
	d.notifySubscription(ctx, pool, sub, subscriber, domain.NotificationTypeSubscriptionPayment,
		"Subscription payment", "A recurring payment from {display_name} was collected")
}

// SubscriptionEnded notifies the pool owner that a subscription stopped,
// whether by cancellation or payment failure
func (d *Dispatcher) SubscriptionEnded(ctx context.Context, pool *schema.DonationPool, sub *schema.Subscription, subscriber *schema.User) {
	d.notifySubscription(ctx, pool, sub, subscriber, domain.NotificationTypeSubscriptionEnded,
		"Subscription ended", "The recurring donation from {display_name} has ended")
}

func (d *Dispatcher) notifySubscription(ctx context.Context, pool *schema.DonationPool, sub *schema.Subscription, subscriber *schema.User, typ domain.NotificationType, title, template string) {
	subscriberName := sub.SubscriberAddress
	var actorID *int64
	if subscriber != nil {
		subscriberName = subscriber.DisplayName()
		actorID = &subscriber.ID
	}

	d.notify(ctx, pool.OwnerUserID, actorID, typ, title,
		renderTemplate(template, subscriberName),
		metadataJSON(map[string]any{
			"pool_id_hash":             pool.IDHash,
			"on_chain_subscription_id": sub.OnChainSubscriptionID,
			"amount":                   sub.Amount,
			"token":                    sub.TokenAddress,
		}))
}

// fanOutToFollowers delivers a copy of the notification to every follower
// of the given user through the worker pool, so a large follower list
// never stalls reconciliation
func (d *Dispatcher) fanOutToFollowers(ctx context.Context, userID int64, actorID *int64, typ domain.NotificationType, title, message string, metadata datatypes.JSON) {
	followerIDs, err := d.store.GetFollowerIDs(ctx, userID)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to load followers for fan-out"),
			zap.Int64("userID", userID))
		return
	}

	for _, followerID := range followerIDs {
		if actorID != nil && followerID == *actorID {
			continue // the actor already got their own confirmation
		}

		d.pool.Submit(func() {
			d.notify(ctx, followerID, actorID, typ, title, message, metadata)
		})
	}
}

// notify is the single delivery path: consult preferences, persist the
// row, push to the live stream, enqueue email. Failures are logged and
// never propagate to the caller.
func (d *Dispatcher) notify(ctx context.Context, recipientID int64, actorID *int64, typ domain.NotificationType, title, message string, metadata datatypes.JSON) {
	setting, err := d.store.GetNotificationSetting(ctx, recipientID)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to load notification setting"),
			zap.Int64("recipientID", recipientID))
		return
	}
	if !setting.InAppEnabled && !setting.EmailEnabled {
		return
	}

	n := &schema.Notification{
		ActorUserID:     actorID,
		RecipientUserID: recipientID,
		Title:           title,
		Message:         message,
		Type:            typ,
		Metadata:        metadata,
	}

	if setting.InAppEnabled {
		if err := d.store.CreateNotification(ctx, n); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save notification"),
				zap.Int64("recipientID", recipientID))
			return
		}
		d.registry.Publish(recipientID, n)
	}

	if setting.EmailEnabled && d.email != nil {
		recipient, err := d.store.GetUserByID(ctx, recipientID)
		if err != nil || recipient == nil || recipient.Email == "" {
			return
		}
		job := &EmailJob{
			RecipientUserID: recipientID,
			To:              recipient.Email,
			Subject:         title,
			Type:            typ,
			Vars:            map[string]string{"message": message},
		}
		if err := d.email.PublishEmail(ctx, job); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to enqueue email job"),
				zap.Int64("recipientID", recipientID))
		}
	}
}

// renderTemplate substitutes the {display_name} placeholder
func renderTemplate(template, displayName string) string {
	return strings.ReplaceAll(template, "{display_name}", displayName)
}

func metadataJSON(fields map[string]any) datatypes.JSON {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
