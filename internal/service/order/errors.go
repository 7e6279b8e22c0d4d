package order

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// infraErr оставляет доменные ошибки как есть, остальное помечает как временный сбой.
func infraErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrTransient),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrOutOfServiceArea),
		domain.IsNotFound(err),
		domain.IsVersionConflict(err):
		return err
	}
	// Сюда же попадают context.DeadlineExceeded и context.Canceled.
	return fmt.Errorf("%w: %s: %w", domain.ErrTransient, op, err)
}

// failureReason выбирает метку причины отказа для метрик.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfServiceArea):
		return "out_of_service_area"
	case errors.Is(err, domain.ErrRestaurantNotFound):
		return "restaurant_not_found"
	case errors.Is(err, domain.ErrDishNotFound):
		return "dish_not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvariant):
		return "invariant"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	default:
		return "other"
	}
}
