package agent

import (
	"context"
	"errors"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// Agent runs the sync loop on a field device: a periodic pass on a ticker,
// plus an immediate pass when the connectivity probe sees the server come
// back after an offline stretch.
type Agent struct {
	queue  interfaces.QueueStore
	client *Client
	syncer *Syncer
	config *common.Config
	logger *common.Logger

	online bool
}

// New creates an agent over a durable queue.
func New(queue interfaces.QueueStore, config *common.Config, logger *common.Logger) *Agent {
	client := NewClient(config, logger)
	return &Agent{
		queue:  queue,
		client: client,
		syncer: NewSyncer(queue, client, logger),
		config: config,
		logger: logger,
	}
}

// Enqueue stores a captured evaluation for later upload.
func (a *Agent) Enqueue(ctx context.Context, obs *models.PendingObservation) error {
	if err := a.queue.Put(ctx, obs); err != nil {
		return err
	}
	a.logger.Debug().
		Str("client_evaluation_id", obs.ClientEvalID).
		Str("store_code", obs.StoreCode).
		Msg("Observation queued")
	return nil
}

// Sync triggers a sync pass now. Returns ErrSyncInProgress when one is
// already running.
func (a *Agent) Sync(ctx context.Context) (*SyncResult, error) {
	return a.syncer.SyncPass(ctx)
}

// Run blocks, draining the queue periodically until the context ends.
func (a *Agent) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(a.config.Agent.GetSyncInterval())
	defer syncTicker.Stop()
	probeTicker := time.NewTicker(a.config.Agent.GetProbeInterval())
	defer probeTicker.Stop()

	a.online = a.client.Probe(ctx)
	a.logger.Info().
		Bool("online", a.online).
		Str("server_url", a.config.Agent.ServerURL).
		Msg("Agent started")

	if a.online {
		a.runPass(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-syncTicker.C:
			if a.online {
				a.runPass(ctx)
			}
		case <-probeTicker.C:
			wasOnline := a.online
			a.online = a.client.Probe(ctx)
			// Edge trigger: drain immediately when connectivity returns.
			if a.online && !wasOnline {
				a.logger.Info().Msg("Server reachable again, starting sync pass")
				a.runPass(ctx)
			}
		}
	}
}

func (a *Agent) runPass(ctx context.Context) {
	if _, err := a.syncer.SyncPass(ctx); err != nil && !errors.Is(err, models.ErrSyncInProgress) {
		a.logger.Warn().Err(err).Msg("Sync pass failed")
	}
}
