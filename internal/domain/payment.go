package domain

// PaymentMethod — способ оплаты, выбранный клиентом.
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodDigitalWallet PaymentMethod = "digital_wallet"
	PaymentMethodUPI           PaymentMethod = "upi"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodDigitalWallet, PaymentMethodUPI:
		return true
	default:
		return false
	}
}

// PaymentStatus хранит статус оплаты как поле записи, платёжного процесса нет.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment хранит сведения об оплате заказа.
type Payment struct {
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string // Пусто, пока нет интеграции с провайдером.
}
