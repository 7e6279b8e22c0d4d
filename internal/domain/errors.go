package domain

import (
	"errors"
	"strings"
)

var (
	// ErrValidation — некорректный или неполный ввод; ничего не записано.
	ErrValidation = errors.New("validation error")
	// ErrInvalidTransition — запрошенный переход статуса запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrRestaurantNotFound возвращается каталогом для неизвестного ресторана.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrDishNotFound возвращается каталогом для неизвестного блюда.
	ErrDishNotFound = errors.New("dish not found")
	// ErrOutOfServiceArea — координаты вне зоны доставки города.
	ErrOutOfServiceArea = errors.New("location is outside the service area")
	// ErrTransient — временная недоступность хранилища/каталога, запрос можно повторить.
	ErrTransient = errors.New("temporary infrastructure error")
	// ErrInvariant — нарушен внутренний инвариант агрегата, наружу не отдаётся.
	ErrInvariant = errors.New("internal invariant violated")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего идентификатора ресторана.
	ErrRestaurantRequired = errors.New("restaurant_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы в расчёте стоимости.
	ErrAmountNegative = errors.New("pricing amounts must be non-negative")
	// Ошибка несоответствия subtotal сумме позиций.
	ErrSubtotalMismatch = errors.New("subtotal does not match items sum")
	// Ошибка несоответствия total = subtotal + delivery_fee + tax.
	ErrTotalMismatch = errors.New("total does not match subtotal + delivery fee + tax")
	// Ошибка отсутствующих координат адреса доставки.
	ErrDeliveryCoordinatesRequired = errors.New("delivery coordinates are required")
	// ErrOrderNotTrackable — заказ в терминальном статусе больше не принимает координаты.
	ErrOrderNotTrackable = errors.New("order is not trackable in its current status")
	// ErrDriverAssignment — водителя можно назначить только в статусе out_for_delivery.
	ErrDriverAssignment = errors.New("driver can be assigned only when order is out for delivery")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrLockNotAcquired — не удалось взять эксклюзивную блокировку заказа.
	ErrLockNotAcquired = errors.New("order lock not acquired")

	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different payload")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// FieldError описывает проблему с конкретным полем запроса.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError собирает ошибки по полям. errors.Is(err, ErrValidation) == true.
type ValidationError struct {
	Fields []FieldError
	cause  error
}

// NewValidationError создаёт ошибку с одним полем.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add добавляет ошибку поля.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// WithCause привязывает более точную причину (например, ErrInvalidTransition).
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// OrNil возвращает nil, если ошибок нет.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is позволяет сопоставлять ошибку с ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound объединяет все "не найдено" ошибки домена.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrRestaurantNotFound) ||
		errors.Is(err, ErrDishNotFound)
}
