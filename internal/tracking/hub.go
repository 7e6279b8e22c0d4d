package tracking

import "sync"

// Hub рассылает подписчикам живого трекинга сигнал «заказ изменился».
// Сигнал без данных: подписчик сам перечитывает заказ.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe возвращает канал уведомлений по номеру заказа и функцию отписки.
// Уведомления схлопываются: в канале не больше одного непрочитанного сигнала.
func (h *Hub) Subscribe(orderID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[orderID] == nil {
		h.subs[orderID] = make(map[chan struct{}]struct{})
	}
	h.subs[orderID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[orderID], ch)
			if len(h.subs[orderID]) == 0 {
				delete(h.subs, orderID)
			}
		})
	}
}

// Notify будит всех подписчиков заказа и не блокируется.
func (h *Hub) Notify(orderID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[orderID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers возвращает число подписчиков заказа.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orderID])
}
