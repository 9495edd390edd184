package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/events"
	"bikeshop-pos/internal/metrics"
)

// StockSource is the part of core.InventoryService the scheduler reads.
type StockSource interface {
	GetStockLevels(ctx context.Context) ([]core.StockLevel, error)
}

// Scheduler runs the periodic low-stock refresh.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	inventory StockSource
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu      sync.Mutex
	flagged map[int]core.StockStatus
}

// NewScheduler creates a scheduler that refreshes stock status on the given cron spec.
func NewScheduler(spec string, inventory StockSource, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Scheduler{
		cron:      cron.New(),
		spec:      spec,
		inventory: inventory,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		flagged:   make(map[int]core.StockStatus),
	}
}

// Start registers the job and starts the cron goroutine.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("low_stock_cron", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.refreshLowStock); err != nil {
		s.logger.Error("failed to schedule low stock refresh", zap.Error(err))
		return err
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshLowStock() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.RefreshLowStock(ctx); err != nil {
		s.logger.Error("low stock refresh failed", zap.Error(err))
	}
}

// RefreshLowStock recomputes the stock status gauges and publishes stock.low for every
// product that newly needs attention or got worse since the previous run. It returns the
// products that were announced.
func (s *Scheduler) RefreshLowStock(ctx context.Context) ([]core.StockLevel, error) {
	levels, err := s.inventory.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{
		string(core.StockOutOfStock): 0,
		string(core.StockCritical):   0,
		string(core.StockLow):        0,
		string(core.StockIn):         0,
	}
	for _, l := range levels {
		counts[string(l.Status)]++
	}
	s.metrics.SetStockStatus(counts)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[int]core.StockStatus)
	var announce []core.StockLevel
	for _, l := range core.FilterLowStock(levels) {
		current[l.ProductID] = l.Status
		prev, seen := s.flagged[l.ProductID]
		if seen && severity(prev) >= severity(l.Status) {
			continue
		}
		announce = append(announce, l)
	}
	s.flagged = current

	for _, l := range announce {
		err := s.publisher.Publish(ctx, events.StockLow, events.StockLowEvent{
			ProductID:    l.ProductID,
			SKU:          l.SKU,
			Name:         l.Name,
			OnHand:       l.OnHand,
			MinimumStock: l.MinimumStock,
			ReorderLevel: l.ReorderLevel,
			Status:       string(l.Status),
		})
		s.metrics.EventPublished(events.StockLow, err)
		if err != nil {
			s.logger.Warn("could not publish stock.low", zap.String("sku", l.SKU), zap.Error(err))
		}
	}

	s.logger.Info("low stock refreshed",
		zap.Int("products", len(levels)),
		zap.Int("needs_attention", len(current)),
		zap.Int("announced", len(announce)),
	)
	return announce, nil
}

func severity(s core.StockStatus) int {
	switch s {
	case core.StockOutOfStock:
		return 3
	case core.StockCritical:
		return 2
	case core.StockLow:
		return 1
	}
	return 0
}
