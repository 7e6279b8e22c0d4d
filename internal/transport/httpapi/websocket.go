package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

const wsWriteTimeout = 5 * time.Second

// trackingFeed отправляет публичный трекинг заказа: сразу, по таймеру и при каждом изменении заказа.
// Соединение закрывается, когда заказ доставлен или отменён.
func (s *Server) trackingFeed(conn *websocket.Conn) {
	orderID := conn.Params("orderId")
	logger := s.logger.WithField("order_id", orderID)

	s.tracking.WebsocketOpened()
	defer s.tracking.WebsocketClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := s.hub.Subscribe(orderID)
	defer unsubscribe()

	// Входящие сообщения не нужны, читаем только чтобы заметить закрытие клиентом.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		done, err := s.pushTracking(ctx, conn, orderID)
		if err != nil {
			logger.WithError(err).Debug("tracking feed closed")
			return
		}
		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-updates:
		}
	}
}

// pushTracking отправляет один снимок; done=true, если дальше слать нечего.
func (s *Server) pushTracking(ctx context.Context, conn *websocket.Conn, orderID string) (bool, error) {
	view, err := s.orders.TrackPublic(ctx, orderID)
	if err != nil {
		_, body, internal := describeError(err)
		if internal {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("tracking feed lookup failed")
		}
		if werr := s.writeJSON(conn, body); werr != nil {
			return true, werr
		}
		// Временные ошибки не закрывают ленту.
		return !errors.Is(err, domain.ErrTransient), nil
	}

	if err := s.writeJSON(conn, toPublicTracking(view)); err != nil {
		return true, err
	}
	return view.Status.IsTerminal(), nil
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"remote": conn.RemoteAddr().String()}).Debug("websocket write failed")
		return err
	}
	return nil
}
