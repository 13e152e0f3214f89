package historycache

import (
	"context"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/jellydator/ttlcache/v3"
)

// Cache keeps the history of recently processed workflow executions, so that a worker does not have to
// load the full history for every workflow task.
type Cache struct {
	c  *ttlcache.Cache[string, []*history.Event]
	mc metrics.Client
}

func New(mc metrics.Client, size int, expiration time.Duration) *Cache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, []*history.Event](uint64(size)),
		ttlcache.WithTTL[string, []*history.Event](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, []*history.Event]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonDeleted:
			reason = "deleted"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		}

		mc.Counter(metrickeys.HistoryCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
		mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(c.Len()))
	})

	return &Cache{
		c:  c,
		mc: mc,
	}
}

// Get returns the cached history of the given execution. The returned slice must not be modified.
func (c *Cache) Get(instance *core.WorkflowInstance) ([]*history.Event, bool) {
	i := c.c.Get(key(instance))
	if i == nil {
		c.mc.Counter(metrickeys.HistoryCacheHit, metrics.Tags{"hit": "false"}, 1)
		return nil, false
	}

	c.mc.Counter(metrickeys.HistoryCacheHit, metrics.Tags{"hit": "true"}, 1)

	return i.Value(), true
}

func (c *Cache) Store(instance *core.WorkflowInstance, h []*history.Event) {
	c.c.Set(key(instance), h, ttlcache.DefaultTTL)

	c.mc.Gauge(metrickeys.HistoryCacheSize, metrics.Tags{}, int64(c.c.Len()))
}

func (c *Cache) Evict(instance *core.WorkflowInstance) {
	c.c.Delete(key(instance))
}

// StartEviction removes expired entries until ctx is canceled.
func (c *Cache) StartEviction(ctx context.Context) {
	go c.c.Start()

	<-ctx.Done()

	c.c.Stop()
}

func key(instance *core.WorkflowInstance) string {
	return instance.InstanceID + "/" + instance.ExecutionID
}
