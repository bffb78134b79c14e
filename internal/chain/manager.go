package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/config"
	"github.com/seedpool/seedpool-backend/internal/logger"
)

// Manager owns one subscriber per configured chain. Dialing happens at
// construction and any dial failure is returned to the caller, which
// treats it as a boot error; only steady-state drops are retried.
type Manager struct {
	subscribers []*Subscriber
	wg          sync.WaitGroup
}

// NewManager dials every configured chain and builds its subscriber
func NewManager(ctx context.Context, cfgs []config.ChainConfig, dialer adapter.EthClientDialer, clock adapter.Clock, handler Handler) (*Manager, error) {
	m := &Manager{}
	for _, cfg := range cfgs {
		client, err := dialer.Dial(ctx, cfg.WebSocketURL)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to dial chain %s: %w", cfg.ChainID, err)
		}

		// A node that cannot serve its head is as much a boot error as a
		// failed dial
		head, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			client.Close()
			m.Close()
			return nil, fmt.Errorf("failed to read chain head for %s: %w", cfg.ChainID, err)
		}
		logger.Info("Connected to chain",
			zap.String("chain", string(cfg.ChainID)),
			zap.String("head", head.Number.String()))

		m.subscribers = append(m.subscribers, NewSubscriber(client, cfg.ChainID, cfg.ContractAddress, clock, handler))
	}
	return m, nil
}

// Start launches one listener goroutine per chain. Listeners run until
// ctx is done; they never stop on their own.
func (m *Manager) Start(ctx context.Context) {
	for _, sub := range m.subscribers {
		m.wg.Add(1)
		go func(sub *Subscriber) {
			defer m.wg.Done()
			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err,
					zap.String("message", "Chain listener stopped"),
					zap.String("chain", string(sub.chainID)))
			}
		}(sub)
	}
}

// Close closes all chain connections concurrently and waits for the
// listener goroutines to drain
func (m *Manager) Close() {
	var closing sync.WaitGroup
	for _, sub := range m.subscribers {
		closing.Add(1)
		go func(sub *Subscriber) {
			defer closing.Done()
			sub.Close()
		}(sub)
	}
	closing.Wait()
	m.wg.Wait()
}
