package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

const defaultKeyTTL = 24 * time.Hour

// Response хранит отрендеренный ответ, который сохраняется для повтора.
type Response struct {
	Body     []byte
	Status   int
	Replayed bool
}

// GuardOptions задаёт параметры Guard.
type GuardOptions struct {
	Logger *log.Entry
	TTL    time.Duration
	Clock  func() time.Time
}

// GuardOption настраивает Guard.
type GuardOption func(*GuardOptions)

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(opts *GuardOptions) { opts.Logger = logger }
}

// WithTTL задаёт срок жизни ключа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(opts *GuardOptions) { opts.TTL = ttl }
}

// WithGuardClock подменяет источник времени.
func WithGuardClock(clock func() time.Time) GuardOption {
	return func(opts *GuardOptions) { opts.Clock = clock }
}

// Guard выполняет запрос не более одного раза на ключ и повторяет сохранённый ответ.
type Guard struct {
	repo   domain.IdempotencyRepository
	logger *log.Entry
	ttl    time.Duration
	now    func() time.Time
}

// NewGuard создаёт Guard поверх репозитория ключей.
func NewGuard(repo domain.IdempotencyRepository, options ...GuardOption) *Guard {
	opts := GuardOptions{TTL: defaultKeyTTL}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "idempotency-guard")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultKeyTTL
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Guard{repo: repo, logger: opts.Logger, ttl: opts.TTL, now: opts.Clock}
}

// Key ограничивает ключ пользователем.
func Key(userID, key string) string {
	return userID + ":" + key
}

// RequestHash считает sha256 от канонического JSON запроса.
func RequestHash(request any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Execute резервирует ключ, выполняет run и сохраняет его ответ.
// Повтор с тем же телом получает сохранённый ответ, с другим телом ErrIdempotencyHashMismatch,
// а пока первый запрос не завершён ErrIdempotencyKeyAlreadyExists.
func (g *Guard) Execute(ctx context.Context, key, requestHash string, run func(ctx context.Context) Response) (Response, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, domain.ErrIdempotencyKeyRequired),
		errors.Is(err, domain.ErrIdempotencyRequestHashRequired):
		return Response{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Replayable() {
			return Response{Body: record.ResponseBody, Status: record.HTTPStatus, Replayed: true}, nil
		}
		return Response{}, err
	default:
		return Response{}, fmt.Errorf("%w: reserve idempotency key: %w", domain.ErrTransient, err)
	}

	resp := run(ctx)

	store := g.repo.MarkDone
	if resp.Status >= http.StatusBadRequest {
		store = g.repo.MarkFailed
	}
	if err := store(ctx, key, resp.Body, resp.Status); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	return resp, nil
}
