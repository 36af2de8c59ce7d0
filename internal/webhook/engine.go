package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_attempts_failed_total",
		Help: "The total number of failed webhook delivery attempts",
	})
	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_delivered_total",
		Help: "The total number of webhook events delivered",
	})
	eventsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_dead_lettered_total",
		Help: "The total number of webhook events routed to the dead-letter queue",
	})
	deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Time from first attempt to terminal outcome",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Outcome is the terminal state of one webhook.publish processing.
type Outcome string

const (
	OutcomeDelivered    Outcome = "DELIVERED"
	OutcomeDeadLettered Outcome = "DEAD_LETTERED"
)

// DeadLetterer receives events that exhausted every delivery attempt.
type DeadLetterer interface {
	Push(ctx context.Context, msg *event.Message) error
}

type Config struct {
	URL         string
	Secret      string
	MaxRetries  int
	HTTPTimeout time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Engine signs and delivers webhook events with bounded in-process retries.
// All attempts for one message happen inside a single PublishEvent call; the
// broker is never asked to redeliver webhook.publish messages.
type Engine struct {
	cfg         Config
	client      *http.Client
	deadLetters DeadLetterer
}

func NewEngine(cfg Config, deadLetters DeadLetterer) *Engine {
	return &Engine{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
		deadLetters: deadLetters,
	}
}

// PublishEvent serializes msg to its canonical byte form, signs it, and POSTs
// it to the receiver. Attempts are strictly sequential; a failure waits out a
// capped exponential backoff with jitter before the next try. Exhaustion
// routes the event to the dead-letter queue and returns OutcomeDeadLettered
// with a nil error: permanent failure still counts as handled.
func (e *Engine) PublishEvent(ctx context.Context, msg *event.Message) (Outcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal event %s: %w", msg.ID, err)
	}
	signature := e.Signature(body)

	started := time.Now()
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(e.backoff(attempt - 1)):
			}
		}

		if err := e.deliver(ctx, body, signature); err != nil {
			lastErr = err
			attemptsFailed.Inc()
			slog.Warn("webhook delivery attempt failed",
				"event_id", msg.ID, "attempt", attempt, "max", e.cfg.MaxRetries, "error", err)
			continue
		}

		eventsDelivered.Inc()
		deliveryDuration.Observe(time.Since(started).Seconds())
		slog.Info("webhook delivered", "event_id", msg.ID, "attempts", attempt)
		return OutcomeDelivered, nil
	}

	if err := e.deadLetters.Push(ctx, msg); err != nil {
		return "", fmt.Errorf("dead-letter event %s: %w", msg.ID, err)
	}

	eventsDeadLettered.Inc()
	deliveryDuration.Observe(time.Since(started).Seconds())
	slog.Error("webhook dead-lettered",
		"event_id", msg.ID, "attempts", e.cfg.MaxRetries, "error", lastErr)
	return OutcomeDeadLettered, nil
}

func (e *Engine) deliver(ctx context.Context, body []byte, signature string) error {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook receiver returned %d", resp.StatusCode)
	}

	return nil
}

// Signature returns the hex HMAC-SHA256 of body under the shared secret. The
// receiver recomputes it over the exact delivered bytes to authenticate
// origin and detect tampering.
func (e *Engine) Signature(body []byte) string {
	h := hmac.New(sha256.New, []byte(e.cfg.Secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// backoff is min(base·2^n, cap) with full jitter.
func (e *Engine) backoff(n int) time.Duration {
	d := e.cfg.BackoffCap
	if n < 62 {
		if shifted := e.cfg.BackoffBase << uint(n); shifted > 0 && shifted < d {
			d = shifted
		}
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)) + 1)
}
