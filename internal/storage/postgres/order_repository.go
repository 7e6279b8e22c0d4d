package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

const orderColumns = `
	id, order_id, user_id, restaurant_id, status,
	subtotal, delivery_fee, tax, total,
	delivery_address, restaurant_location, tracking, driver, payment, status_timestamps,
	contact_phone, special_instructions, placed_at, version, created_at, updated_at`

const pgUniqueViolation = "23505"

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository хранит заказы в orders, позиции в order_items.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create пишет заказ и его позиции одной транзакцией.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (err error) {
	docs, err := encodeOrderDocuments(order)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create order %s: begin: %w", order.OrderID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p := order.Pricing
	if _, err = tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		order.ID, order.OrderID, order.UserID, order.RestaurantID, string(order.Status),
		p.Subtotal, p.DeliveryFee, p.Tax, p.Total,
		docs.address, docs.restaurant, docs.tracking, nullableJSON(docs.driver), docs.payment, docs.timestamps,
		order.ContactPhone, order.SpecialInstructions, order.PlacedAt, order.Version, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}

	for pos, item := range order.Items {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, position, dish_id, name, quantity, unit_price) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, order.ID, pos, item.DishID, item.Name, item.Quantity, item.UnitPrice,
		); err != nil {
			return fmt.Errorf("create order %s: item %s: %w", order.OrderID, item.DishID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("create order %s: commit: %w", order.OrderID, err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
}

func (r *orderRepository) findOne(ctx context.Context, query, key string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByUser возвращает заказы пользователя, новые первыми; limit<=0 снимает ограничение.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, order_id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	orders, err := queryAll(ctx, r.db, scanOrder, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", userID, err)
	}
	if orders == nil {
		return []*domain.Order{}, nil
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Save обновляет изменяемую часть заказа с проверкой версии. Позиции и цены после оформления не меняются.
func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	docs, err := encodeOrderDocuments(order)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := execAffected(ctx, r.db, `
		UPDATE orders
		SET status = $1, tracking = $2, driver = $3, payment = $4, status_timestamps = $5,
		    version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8`,
		string(order.Status), docs.tracking, nullableJSON(docs.driver), docs.payment, docs.timestamps,
		order.UpdatedAt, order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("save order %s: %w", order.OrderID, err)
	}
	if n == 1 {
		order.Version++
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("save order %s: %w", order.OrderID, err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderVersionConflict
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order  domain.Order
		status string
		docs   orderDocuments
	)
	if err := row.Scan(
		&order.ID, &order.OrderID, &order.UserID, &order.RestaurantID, &status,
		&order.Pricing.Subtotal, &order.Pricing.DeliveryFee, &order.Pricing.Tax, &order.Pricing.Total,
		&docs.address, &docs.restaurant, &docs.tracking, &docs.driver, &docs.payment, &docs.timestamps,
		&order.ContactPhone, &order.SpecialInstructions, &order.PlacedAt, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	if err := decodeOrderDocuments(&order, docs); err != nil {
		return nil, err
	}
	return &order, nil
}

type orderItemRow struct {
	orderID string
	item    domain.OrderItem
}

// attachItems загружает позиции всех заказов одним запросом.
func (r *orderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	ids := make([]string, 0, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	rows, err := queryAll(ctx, r.db, func(row rowScanner) (orderItemRow, error) {
		var it orderItemRow
		err := row.Scan(&it.orderID, &it.item.ID, &it.item.DishID, &it.item.Name, &it.item.Quantity, &it.item.UnitPrice)
		return it, err
	}, `SELECT order_id, id, dish_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for _, it := range rows {
		if o, ok := byID[it.orderID]; ok {
			o.Items = append(o.Items, it.item)
		}
	}
	return nil
}

func nullableJSON(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return doc
}

var _ domain.OrderRepository = (*orderRepository)(nil)
