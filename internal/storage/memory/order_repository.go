package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// orderRepositoryInMemory хранит заказы в памяти с индексом по публичному номеру.
type orderRepositoryInMemory struct {
	mu        sync.RWMutex
	items     map[string]*domain.Order
	byOrderID map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:     make(map[string]*domain.Order),
		byOrderID: make(map[string]string),
	}
}

// Create сохраняет новый заказ, если ID и OrderID ещё не заняты.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	if _, exists := r.byOrderID[order.OrderID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Храним копию, чтобы вызывающий код не менял состояние репозитория.
	r.items[order.ID] = order.Clone()
	r.byOrderID[order.OrderID] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// GetByOrderID ищет заказ по публичному номеру.
func (r *orderRepositoryInMemory) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrderID[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return r.items[id].Clone(), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].OrderID > result[j].OrderID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
// При успехе order.Version увеличивается.
func (r *orderRepositoryInMemory) Save(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	r.items[order.ID] = order.Clone()
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
