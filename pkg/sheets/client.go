package sheets

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bajio-reconciler/pkg/metrics"
	"github.com/FACorreiaa/bajio-reconciler/pkg/ratelimit"
	"github.com/FACorreiaa/bajio-reconciler/pkg/retry"
)

const tracerName = "github.com/FACorreiaa/bajio-reconciler/pkg/sheets"

// Client wraps a Store so every call goes through the shared limiter and
// the retry policy. It implements Store itself.
type Client struct {
	store   Store
	limiter *ratelimit.Limiter
	policy  *retry.Policy
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// RetryClass maps store error kinds to retry classes.
func RetryClass(err error) retry.Class {
	switch KindOf(err) {
	case KindQuota:
		return retry.Throttled
	case KindNetwork:
		return retry.Transient
	default:
		return retry.Permanent
	}
}

// NewClient creates a client. A nil policy disables retries; a nil
// limiter disables throttling.
func NewClient(store Store, limiter *ratelimit.Limiter, policy *retry.Policy, logger *slog.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	p := retry.Policy{MaxAttempts: 1}
	if policy != nil {
		p = *policy
	}
	if p.Classify == nil {
		p.Classify = RetryClass
	}

	c := &Client{
		store:   store,
		limiter: limiter,
		policy:  &p,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
	p.OnRetry = c.onRetry
	return c
}

// WithMetrics records requests, retries and limiter waits.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	c.limiter.OnWait(m.ObserveWait)
	return c
}

func (c *Client) onRetry(attempt int, class retry.Class, delay time.Duration, err error) {
	c.metrics.ObserveRetry(class.String())
	c.logger.Warn("retrying remote call",
		slog.Int("attempt", attempt),
		slog.String("class", class.String()),
		slog.Duration("delay", delay),
		"error", err,
	)
}

func (c *Client) call(ctx context.Context, op, tab string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "sheets."+op, trace.WithAttributes(attribute.String("sheets.tab", tab)))
	defer span.End()

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		err := fn(ctx)
		c.metrics.ObserveRequest(op, err)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	return err
}

func (c *Client) EnsureTab(ctx context.Context, tab string, headers []string) error {
	return c.call(ctx, "EnsureTab", tab, func(ctx context.Context) error {
		return c.store.EnsureTab(ctx, tab, headers)
	})
}

func (c *Client) ReadAll(ctx context.Context, tab string) ([][]string, error) {
	var rows [][]string
	err := c.call(ctx, "ReadAll", tab, func(ctx context.Context) error {
		var err error
		rows, err = c.store.ReadAll(ctx, tab)
		return err
	})
	return rows, err
}

func (c *Client) ReadRange(ctx context.Context, tab string, rng Range) ([][]string, error) {
	var rows [][]string
	err := c.call(ctx, "ReadRange", tab, func(ctx context.Context) error {
		var err error
		rows, err = c.store.ReadRange(ctx, tab, rng)
		return err
	})
	return rows, err
}

func (c *Client) WriteRange(ctx context.Context, tab string, rng Range, rows [][]any) error {
	return c.call(ctx, "WriteRange", tab, func(ctx context.Context) error {
		return c.store.WriteRange(ctx, tab, rng, rows)
	})
}

func (c *Client) AppendRows(ctx context.Context, tab string, rows [][]any) error {
	return c.call(ctx, "AppendRows", tab, func(ctx context.Context) error {
		return c.store.AppendRows(ctx, tab, rows)
	})
}

func (c *Client) Grow(ctx context.Context, tab string, extra int) error {
	return c.call(ctx, "Grow", tab, func(ctx context.Context) error {
		return c.store.Grow(ctx, tab, extra)
	})
}

func (c *Client) RowCount(ctx context.Context, tab string) (int, error) {
	var n int
	err := c.call(ctx, "RowCount", tab, func(ctx context.Context) error {
		var err error
		n, err = c.store.RowCount(ctx, tab)
		return err
	})
	return n, err
}

func (c *Client) GetCell(ctx context.Context, tab string, row, col int) (string, error) {
	var v string
	err := c.call(ctx, "GetCell", tab, func(ctx context.Context) error {
		var err error
		v, err = c.store.GetCell(ctx, tab, row, col)
		return err
	})
	return v, err
}
