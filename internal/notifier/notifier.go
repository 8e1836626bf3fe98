// Package notifier pushes balance updates to interested consumers. Delivery
// is best effort; billing outcomes never depend on it.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/observability/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BalanceUpdate is the event emitted after any balance change.
type BalanceUpdate struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Reason  string          `json:"reason"`
	At      time.Time       `json:"at"`
}

type Notifier interface {
	// Notify never returns an error; failures are logged and counted.
	Notify(ctx context.Context, update BalanceUpdate)
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Metrics *metrics.Metrics
	LC      fx.Lifecycle
}

type notifier struct {
	log     *zap.Logger
	cfg     config.NotifierConfig
	metrics *metrics.Metrics
	httpCli *http.Client
	redis   *redis.Client
}

func New(p Params) Notifier {
	n := &notifier{
		log:     p.Log.Named("notifier"),
		cfg:     p.Cfg.Notifier,
		metrics: p.Metrics,
		httpCli: &http.Client{Timeout: 5 * time.Second},
	}
	if p.Cfg.Notifier.RedisAddr != "" {
		n.redis = redis.NewClient(&redis.Options{Addr: p.Cfg.Notifier.RedisAddr})
		p.LC.Append(fx.StopHook(func() error {
			return n.redis.Close()
		}))
	}
	return n
}

func (n *notifier) Notify(ctx context.Context, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		n.log.Error("marshal balance update", zap.Error(err))
		return
	}

	if n.cfg.URL != "" {
		n.post(ctx, payload)
	}
	if n.redis != nil {
		if err := n.redis.Publish(ctx, n.cfg.RedisChannel, payload).Err(); err != nil {
			n.metrics.NotifierFailures.Inc()
			n.log.Warn("publish balance update",
				zap.String("channel", n.cfg.RedisChannel), zap.Error(err))
		}
	}
}

func (n *notifier) post(ctx context.Context, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		n.metrics.NotifierFailures.Inc()
		n.log.Warn("build balance notification", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpCli.Do(req)
	if err != nil {
		n.metrics.NotifierFailures.Inc()
		n.log.Warn("post balance update", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.metrics.NotifierFailures.Inc()
		n.log.Warn("balance update rejected", zap.Int("status", resp.StatusCode))
	}
}

var Module = fx.Module("notifier",
	fx.Provide(New),
)
