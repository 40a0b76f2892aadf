package httpx

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ErrBadQuery - некорректный параметр запроса.
var ErrBadQuery = errors.New("bad query parameter")

// ClampInt - ограничение значения v в диапазоне [min, max].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseLimitOffset - читает limit/offset из query с дефолтами и границами.
func ParseLimitOffset(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit))); err == nil {
		limit = ClampInt(v, 1, maxLimit)
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return
}

// ParseCursorSize - читает cursor/size из query.
// Отсутствующий параметр даёт 0 (курсор "сейчас", размер по умолчанию),
// нормализация размера остаётся за сервисом. Нечисловое значение - ErrBadQuery.
func ParseCursorSize(c *gin.Context) (cursor int64, size int, err error) {
	if raw := c.Query("cursor"); raw != "" {
		cursor, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: cursor=%q", ErrBadQuery, raw)
		}
	}
	if raw := c.Query("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: size=%q", ErrBadQuery, raw)
		}
	}
	return cursor, size, nil
}

// ParseID - положительный int64 из path-параметра.
func ParseID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadQuery, name, raw)
	}
	return id, nil
}
