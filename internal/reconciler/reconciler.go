package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/notifier"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// Reconciler maps decoded chain events to idempotent database mutations.
// Event delivery is at-least-once, so every handler must leave the same
// end state when replayed. Handlers are independent: a failure is reported
// to the caller for logging but never stops the listener, and no
// transaction spans more than one event.
type Reconciler struct {
	store      store.Store
	dispatcher *notifier.Dispatcher
}

// New creates a reconciler
func New(st store.Store, dispatcher *notifier.Dispatcher) *Reconciler {
	return &Reconciler{store: st, dispatcher: dispatcher}
}

// Handle applies one event. The returned error is a reconciliation error
// to be logged by the caller; it never warrants a retry because the
// mutation either happened or the event references unknown state.
func (r *Reconciler) Handle(ctx context.Context, event domain.ChainEvent) error {
	switch e := event.(type) {
	case domain.PoolCreated:
		return r.handlePoolCreated(ctx, e)
	case domain.DonationReceived:
		return r.handleDonationReceived(ctx, e)
	case domain.DonationFailed:
		return r.handleDonationFailed(ctx, e)
	case domain.SubscriptionCreated:
		return r.handleSubscriptionCreated(ctx, e)
	case domain.SubscriptionPaymentSucceeded:
		return r.handlePaymentSucceeded(ctx, e)
	case domain.SubscriptionPaymentFailed:
		return r.handlePaymentFailed(ctx, e)
	case domain.Unsubscribed:
		return r.handleUnsubscribed(ctx, e)
	default:
		return fmt.Errorf("no handler for event kind %s", event.Kind())
	}
}

// handlePoolCreated transitions the matching pool row to published.
// The row is expected to exist already because local creation precedes
// the on-chain publish call; a missing row is a reconciliation error.
func (r *Reconciler) handlePoolCreated(ctx context.Context, e domain.PoolCreated) error {
	pool, err := r.store.GetPoolByIDHash(ctx, e.IDHash)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("pool created event for unknown id hash %s (tx %s)", e.IDHash, e.TxHash)
	}

	alreadyPublished := pool.Status == domain.PoolStatusPublished

	rows, err := r.store.PublishPool(ctx, e.IDHash, e.OnChainPoolID, domain.NormalizeAddress(e.OwnerAddress))
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("pool publish matched no rows for id hash %s", e.IDHash)
	}

	logger.InfoCtx(ctx, "Pool published",
		zap.String("idHash", e.IDHash),
		zap.Uint64("onChainPoolID", e.OnChainPoolID),
		zap.String("chain", string(e.Chain)))

	// Replays reach the same end state but must not re-notify
	if !alreadyPublished {
		r.dispatcher.PoolPublished(ctx, pool)
	}
	return nil
}

// handleDonationReceived inserts the donation exactly once and fans out
// notifications only when this delivery actually inserted the row
func (r *Reconciler) handleDonationReceived(ctx context.Context, e domain.DonationReceived) error {
	pool, err := r.store.GetPoolByOnChainID(ctx, e.Chain, e.OnChainPoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("donation event for unknown pool %d on %s (tx %s)", e.OnChainPoolID, e.Chain, e.TxHash)
	}

	donorAddress := domain.NormalizeAddress(e.DonorAddress)
	donor, err := r.store.GetUserByAddress(ctx, donorAddress)
	if err != nil {
		return err
	}

	donation := &schema.Donation{
		PoolID:       pool.ID,
		DonorAddress: donorAddress,
		TokenAddress: domain.NormalizeAddress(e.TokenAddress),
		Amount:       e.Amount,
		Message:      e.Message,
		Recurring:    e.Recurring,
		Chain:        e.Chain,
		TxHash:       e.TxHash,
		LogIndex:     e.LogIndex,
		BlockNumber:  e.BlockNumber,
		DonatedAt:    e.Timestamp,
	}
	if donor != nil {
		donation.DonorUserID = &donor.ID
	}

	inserted, err := r.store.InsertDonation(ctx, donation)
	if err != nil {
		return err
	}
	if !inserted {
		logger.DebugCtx(ctx, "Skipping duplicate donation event",
			zap.String("txHash", e.TxHash),
			zap.Uint("logIndex", e.LogIndex))
		return nil
	}

	r.dispatcher.DonationReceived(ctx, pool, donation, donor)
	return nil
}

// handleDonationFailed only surfaces the failure to the operator channel;
// nothing is persisted for a reverted donation
func (r *Reconciler) handleDonationFailed(ctx context.Context, e domain.DonationFailed) error {
	logger.WarnCtx(ctx, "Donation failed on chain",
		zap.Uint64("onChainPoolID", e.OnChainPoolID),
		zap.String("donor", e.DonorAddress),
		zap.String("amount", e.Amount),
		zap.String("txHash", e.TxHash),
		zap.String("chain", string(e.Chain)))
	return nil
}

// handleSubscriptionCreated upserts the subscription keyed by its contract
// identity, so replays converge on the event's values
func (r *Reconciler) handleSubscriptionCreated(ctx context.Context, e domain.SubscriptionCreated) error {
	pool, err := r.store.GetPoolByOnChainID(ctx, e.Chain, e.OnChainPoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("subscription event for unknown pool %d on %s (tx %s)", e.OnChainPoolID, e.Chain, e.TxHash)
	}

	existing, err := r.store.GetSubscriptionByOnChainID(ctx, e.Chain, e.OnChainSubscriptionID)
	if err != nil {
		return err
	}

	subscriberAddress := domain.NormalizeAddress(e.SubscriberAddress)
	sub := &schema.Subscription{
		Chain:                 e.Chain,
		OnChainSubscriptionID: e.OnChainSubscriptionID,
		PoolID:                pool.ID,
		SubscriberAddress:     subscriberAddress,
		TokenAddress:          domain.NormalizeAddress(e.TokenAddress),
		Amount:                e.Amount,
		IntervalSeconds:       e.IntervalSeconds,
		RemainingPayments:     e.RemainingPayments,
		NextPaymentTime:       e.NextPaymentTime,
		Active:                true,
		ExpiresAt:             e.ExpiresAt,
		UpdatedAt:             time.Now(),
	}
	if err := r.store.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	if existing == nil {
		subscriber, err := r.store.GetUserByAddress(ctx, subscriberAddress)
		if err != nil {
			return err
		}
		r.dispatcher.SubscriptionStarted(ctx, pool, sub, subscriber)
	}
	return nil
}

// handlePaymentSucceeded advances the payment bookkeeping. The subscriber
// must match, and a replay that changes nothing must not re-notify, so
// the prior state is read before the update.
func (r *Reconciler) handlePaymentSucceeded(ctx context.Context, e domain.SubscriptionPaymentSucceeded) error {
	subscriber := domain.NormalizeAddress(e.SubscriberAddress)
	sub, err := r.store.GetSubscriptionByOnChainID(ctx, e.Chain, e.OnChainSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil || !domain.SameAddress(sub.SubscriberAddress, subscriber) {
		return fmt.Errorf("payment success for unknown subscription %d on %s (subscriber %s)",
			e.OnChainSubscriptionID, e.Chain, subscriber)
	}

	advanced := sub.RemainingPayments != e.RemainingPayments ||
		sub.NextPaymentTime != e.NextPaymentTime ||
		!sub.Active

	rows, err := r.store.UpdateSubscriptionPayment(ctx, e.Chain, e.OnChainSubscriptionID, sub.SubscriberAddress,
		e.RemainingPayments, e.NextPaymentTime, true)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("payment success matched no rows for subscription %d on %s", e.OnChainSubscriptionID, e.Chain)
	}

	if advanced {
		r.dispatchSubscriptionUpdate(ctx, e.Chain, e.OnChainSubscriptionID, sub.SubscriberAddress,
			(*notifier.Dispatcher).SubscriptionPayment)
	}
	return nil
}

// handlePaymentFailed deactivates the subscription after a failed
// collection. The subscriber must match, same as the success path.
func (r *Reconciler) handlePaymentFailed(ctx context.Context, e domain.SubscriptionPaymentFailed) error {
	subscriber := domain.NormalizeAddress(e.SubscriberAddress)
	sub, err := r.store.GetSubscriptionByOnChainID(ctx, e.Chain, e.OnChainSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil || !domain.SameAddress(sub.SubscriberAddress, subscriber) {
		return fmt.Errorf("payment failure for unknown subscription %d on %s (subscriber %s)",
			e.OnChainSubscriptionID, e.Chain, subscriber)
	}

	wasActive := sub.Active
	rows, err := r.store.UpdateSubscriptionPayment(ctx, e.Chain, e.OnChainSubscriptionID, sub.SubscriberAddress,
		sub.RemainingPayments, sub.NextPaymentTime, false)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("payment failure matched no rows for subscription %d on %s", e.OnChainSubscriptionID, e.Chain)
	}

	if wasActive {
		r.dispatchSubscriptionUpdate(ctx, e.Chain, e.OnChainSubscriptionID, sub.SubscriberAddress,
			(*notifier.Dispatcher).SubscriptionEnded)
	}
	return nil
}

// handleUnsubscribed deactivates the subscription; the row is kept for
// history and never deleted
func (r *Reconciler) handleUnsubscribed(ctx context.Context, e domain.Unsubscribed) error {
	sub, err := r.store.GetSubscriptionByOnChainID(ctx, e.Chain, e.OnChainSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("unsubscribe for unknown subscription %d on %s (tx %s)",
			e.OnChainSubscriptionID, e.Chain, e.TxHash)
	}

	wasActive := sub.Active
	if _, err := r.store.DeactivateSubscription(ctx, e.Chain, e.OnChainSubscriptionID); err != nil {
		return err
	}

	if wasActive {
		r.dispatchSubscriptionUpdate(ctx, e.Chain, e.OnChainSubscriptionID, sub.SubscriberAddress,
			(*notifier.Dispatcher).SubscriptionEnded)
	}
	return nil
}

// dispatchSubscriptionUpdate re-reads the freshly mutated subscription and
// its pool, then invokes the given dispatcher method. Dispatch problems
// are logged, not returned: the mutation already succeeded.
func (r *Reconciler) dispatchSubscriptionUpdate(ctx context.Context, chain domain.Chain, onChainID uint64, subscriberAddress string,
	dispatch func(*notifier.Dispatcher, context.Context, *schema.DonationPool, *schema.Subscription, *schema.User)) {

	sub, err := r.store.GetSubscriptionByOnChainID(ctx, chain, onChainID)
	if err != nil || sub == nil {
		logger.WarnCtx(ctx, "Skipping subscription notification, row not readable",
			zap.Uint64("onChainSubscriptionID", onChainID), zap.Error(err))
		return
	}

	pool, err := r.store.GetPoolByID(ctx, sub.PoolID)
	if err != nil || pool == nil {
		logger.WarnCtx(ctx, "Skipping subscription notification, pool not readable",
			zap.Int64("poolID", sub.PoolID), zap.Error(err))
		return
	}

	subscriber, err := r.store.GetUserByAddress(ctx, subscriberAddress)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to resolve subscriber profile", zap.Error(err))
	}

	dispatch(r.dispatcher, ctx, pool, sub, subscriber)
}
