package events

import (
	"errors"
	"fmt"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// ErrInvalidEvent - базовая (sentinel error) ошибка разбора/валидации события.
// Такое событие не станет валидным при повторе, его можно пропускать.
var ErrInvalidEvent = errors.New("event validation failed")

// Validate - проверяет обязательные поля события в зависимости от типа.
func Validate(ev *domain.Event) error {
	if ev == nil {
		return fmt.Errorf("%w: событие не может быть nil", ErrInvalidEvent)
	}
	switch ev.Type {
	case domain.EventGoodsCreated, domain.EventGoodsRemoved:
		return validateGoods("goods", ev.Goods)
	case domain.EventGoodsMutated:
		if err := validateGoods("goods", ev.Goods); err != nil {
			return err
		}
		if ev.Previous != nil {
			if err := validateGoods("previous", ev.Previous); err != nil {
				return err
			}
			if ev.Previous.ID != ev.Goods.ID {
				return fmt.Errorf("%w: previous.id=%d не совпадает с goods.id=%d", ErrInvalidEvent, ev.Previous.ID, ev.Goods.ID)
			}
		}
		return nil
	case domain.EventFavoriteAdded:
		if err := validateFavorite(ev); err != nil {
			return err
		}
		if ev.At <= 0 {
			return fmt.Errorf("%w: at обязателен для %s", ErrInvalidEvent, ev.Type)
		}
		return nil
	case domain.EventFavoriteRemoved:
		return validateFavorite(ev)
	case domain.EventUserRegistered, domain.EventUserUpdated:
		if ev.UserID <= 0 {
			return fmt.Errorf("%w: user_id обязателен", ErrInvalidEvent)
		}
		if ev.At <= 0 {
			return fmt.Errorf("%w: at (время регистрации) обязателен", ErrInvalidEvent)
		}
		return nil
	case "":
		return fmt.Errorf("%w: type обязателен", ErrInvalidEvent)
	default:
		return fmt.Errorf("%w: неизвестный type %q", ErrInvalidEvent, ev.Type)
	}
}

func validateGoods(field string, g *domain.GoodsState) error {
	if g == nil {
		return fmt.Errorf("%w: %s обязателен", ErrInvalidEvent, field)
	}
	if g.ID <= 0 {
		return fmt.Errorf("%w: %s.id должен быть положительным", ErrInvalidEvent, field)
	}
	if g.OwnerID <= 0 {
		return fmt.Errorf("%w: %s.owner_id должен быть положительным", ErrInvalidEvent, field)
	}
	if g.CategoryID != nil && *g.CategoryID <= 0 {
		return fmt.Errorf("%w: %s.category_id должен быть положительным", ErrInvalidEvent, field)
	}
	if g.Status < domain.StatusOnSale || g.Status > domain.StatusSystemBlocked {
		return fmt.Errorf("%w: %s.status=%d вне диапазона", ErrInvalidEvent, field, g.Status)
	}
	if g.UpdatedAt <= 0 {
		return fmt.Errorf("%w: %s.updated_at обязателен", ErrInvalidEvent, field)
	}
	return nil
}

func validateFavorite(ev *domain.Event) error {
	if ev.UserID <= 0 {
		return fmt.Errorf("%w: user_id обязателен", ErrInvalidEvent)
	}
	if ev.GoodsID <= 0 {
		return fmt.Errorf("%w: goods_id обязателен", ErrInvalidEvent)
	}
	return nil
}
