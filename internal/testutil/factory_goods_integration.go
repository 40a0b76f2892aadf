//go:build integration

package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func UniqSuffix() string { return randHex(6) }

// msBound - параметр в миллисекундах эпохи -> timestamptz.
const msBound = `(timestamptz 'epoch' + $%d::bigint * interval '1 millisecond')`

// NowMs - текущее время в мс, как его хранит timestamptz(3).
func NowMs() int64 { return time.Now().UnixMilli() }

// InsertUser - пользователь с уникальным ником; возвращает id.
func InsertUser(ctx context.Context, pool *pgxpool.Pool, registeredAt int64) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO users (nickname, avatar, create_time) VALUES ($1, $2, `+msBound+`) RETURNING id`, 3),
		"user-"+UniqSuffix(), "https://cdn.example.com/a.png", registeredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// InsertCategory - категория товаров; возвращает id.
func InsertCategory(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	var id int64
	if err := pool.QueryRow(ctx, `INSERT INTO goods_category (name) VALUES ($1) RETURNING id`, "cat-"+UniqSuffix()).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

// GoodsParams - параметры вставляемого товара.
type GoodsParams struct {
	OwnerID     int64
	CategoryID  *int64
	Status      domain.GoodsStatus
	UpdatedAt   int64
	CollectNum  int64
	Description string
}

// GoodsOption - модификатор GoodsParams.
type GoodsOption func(*GoodsParams)

func WithCategory(id int64) GoodsOption { return func(s *GoodsParams) { s.CategoryID = &id } }

func WithStatus(st domain.GoodsStatus) GoodsOption { return func(s *GoodsParams) { s.Status = st } }

func WithUpdatedAt(ms int64) GoodsOption { return func(s *GoodsParams) { s.UpdatedAt = ms } }

func WithCollectNum(n int64) GoodsOption { return func(s *GoodsParams) { s.CollectNum = n } }

func WithDescription(d string) GoodsOption { return func(s *GoodsParams) { s.Description = d } }

// InsertGoods - товар на продаже (по умолчанию) с update_time = сейчас.
func InsertGoods(ctx context.Context, pool *pgxpool.Pool, ownerID int64, opts ...GoodsOption) (domain.GoodsState, error) {
	params := GoodsParams{
		OwnerID:     ownerID,
		Status:      domain.StatusOnSale,
		UpdatedAt:   NowMs(),
		Description: "Отличная вещь, почти новая, самовывоз " + UniqSuffix(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	var id int64
	err := pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO goods (owner_id, category_id, status, collect_num, description, sell_price, rent_price, update_time)
		VALUES ($1, $2, $3, $4, $5, 1999.90, 150.00, `+msBound+`)
		RETURNING id`, 6),
		params.OwnerID, params.CategoryID, int(params.Status), params.CollectNum, params.Description, params.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return domain.GoodsState{}, fmt.Errorf("insert goods: %w", err)
	}
	return domain.GoodsState{
		ID:         id,
		OwnerID:    params.OwnerID,
		CategoryID: params.CategoryID,
		Status:     params.Status,
		UpdatedAt:  params.UpdatedAt,
	}, nil
}

// UpdateGoodsStatus - сменить статус и update_time; возвращает новое состояние.
func UpdateGoodsStatus(ctx context.Context, pool *pgxpool.Pool, g domain.GoodsState, st domain.GoodsStatus, updatedAt int64) (domain.GoodsState, error) {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`UPDATE goods SET status = $1, update_time = `+msBound+` WHERE id = $3`, 2),
		int(st), updatedAt, g.ID); err != nil {
		return domain.GoodsState{}, fmt.Errorf("update goods: %w", err)
	}
	g.Status, g.UpdatedAt = st, updatedAt
	return g, nil
}

// AddFavorite - запись в избранное с временем at (мс).
func AddFavorite(ctx context.Context, pool *pgxpool.Pool, userID, goodsID, at int64) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`INSERT INTO goods_favorite (user_id, goods_id, create_time) VALUES ($1, $2, `+msBound+`)`, 3),
		userID, goodsID, at)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// EventJSON - событие в том виде, в каком его публикует writer-сервис.
func EventJSON(ev domain.Event) []byte {
	raw, _ := json.Marshal(ev)
	return raw
}

// GoodsCreated - событие goods.created.
func GoodsCreated(g domain.GoodsState) domain.Event {
	return domain.Event{Type: domain.EventGoodsCreated, Goods: &g}
}

// GoodsMutated - событие goods.mutated с прежним состоянием.
func GoodsMutated(previous, g domain.GoodsState) domain.Event {
	return domain.Event{Type: domain.EventGoodsMutated, Goods: &g, Previous: &previous}
}

// FavoriteAdded - событие favorite.added.
func FavoriteAdded(userID, goodsID, at int64) domain.Event {
	return domain.Event{Type: domain.EventFavoriteAdded, UserID: userID, GoodsID: goodsID, At: at}
}
