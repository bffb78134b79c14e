package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
)

// Handler receives every decoded contract event, in emission order per chain
type Handler func(ctx context.Context, event domain.ChainEvent) error

// Subscriber maintains one live log subscription against the pool contract
// of a single chain. Event delivery is at-least-once: a reconnect replays
// nothing by itself, but handlers must tolerate duplicates anyway because
// the node may redeliver logs around reorgs.
type Subscriber struct {
	client   adapter.EthClient
	chainID  domain.Chain
	contract common.Address
	clock    adapter.Clock
	handler  Handler
}

// NewSubscriber creates a subscriber for one chain's pool contract
func NewSubscriber(client adapter.EthClient, chainID domain.Chain, contractAddress string, clock adapter.Clock, handler Handler) *Subscriber {
	return &Subscriber{
		client:   client,
		chainID:  chainID,
		contract: common.HexToAddress(contractAddress),
		clock:    clock,
		handler:  handler,
	}
}

// Run blocks until ctx is done, keeping the subscription alive. Dropped
// subscriptions are re-established with exponential backoff; the backoff
// resets once a connection has been healthy for a while. Re-subscription
// is safe because all downstream mutations are idempotent.
func (s *Subscriber) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever, only ctx cancellation stops us
	bo.MaxInterval = time.Minute

	for {
		started := s.clock.Now()
		err := s.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A subscription that stayed up past the max interval counts as
		// a healthy run, so the next drop starts from a short delay again
		if s.clock.Since(started) > bo.MaxInterval {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		logger.WarnCtx(ctx, "Chain subscription dropped, reconnecting",
			zap.String("chain", string(s.chainID)),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(wait):
		}
	}
}

// subscribeOnce opens the log subscription and pumps events until the
// subscription errors or ctx is done
func (s *Subscriber) subscribeOnce(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{eventTopics},
	}

	logs := make(chan types.Log)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to filter logs: %w", err)
	}
	defer sub.Unsubscribe()

	logger.InfoCtx(ctx, "Subscribed to pool contract events",
		zap.String("chain", string(s.chainID)),
		zap.String("contract", s.contract.Hex()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			event, err := DecodeLog(s.chainID, vLog, s.clock.Now())
			if err != nil {
				logger.ErrorCtx(ctx, err,
					zap.String("message", "Error decoding log"),
					zap.String("chain", string(s.chainID)),
					zap.String("txHash", vLog.TxHash.Hex()))
				continue
			}
			if event == nil {
				continue
			}

			// Handler failures must not take the subscription down
			if err := s.handler(ctx, event); err != nil {
				logger.ErrorCtx(ctx, err,
					zap.String("message", "Error handling event"),
					zap.String("chain", string(s.chainID)),
					zap.String("kind", string(event.Kind())))
			}
		}
	}
}

// Close closes the underlying client connection
func (s *Subscriber) Close() {
	if s.client == nil {
		return
	}
	s.client.Close()
	logger.Info("Chain WebSocket connection closed", zap.String("chain", string(s.chainID)))
}
