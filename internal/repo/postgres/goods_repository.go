package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// Проверка, что GoodsRepository удовлетворяет интерфейсам хранилища.
var (
	_ ports.GoodsStore   = (*GoodsRepository)(nil)
	_ ports.CounterStore = (*GoodsRepository)(nil)
)

// cardColumns - колонки карточки; порядок совпадает со scanCard.
const cardColumns = `g.id, g.owner_id, g.description, g.cover_url, g.goods_type, g.condition_level,
	g.category_id, g.sell_price, g.rent_price, u.nickname, u.avatar, ` + "(extract(epoch FROM g.update_time) * 1000)::bigint" + `, g.collect_num`

// GoodsRepository - товары, избранное и счётчики на Postgres (pgxpool).
type GoodsRepository struct {
	pool *pgxpool.Pool
}

// NewGoodsRepository - конструктор GoodsRepository.
func NewGoodsRepository(pool *pgxpool.Pool) *GoodsRepository { return &GoodsRepository{pool: pool} }

// FetchPage - страница партиции прямо из хранилища (fallback при отсутствии индекса).
func (r *GoodsRepository) FetchPage(ctx context.Context, p domain.Partition, cursor int64, limit int) ([]domain.Scored[domain.GoodsCard], error) {
	q, err := goodsPartitionQuery(p)
	if err != nil {
		return nil, err
	}
	sql, args := q.page(cardColumns, cursor, limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select goods page %s: %w", p, err)
	}
	defer rows.Close()

	out := make([]domain.Scored[domain.GoodsCard], 0, limit)
	for rows.Next() {
		var (
			card  domain.GoodsCard
			score int64
		)
		if err := scanCard(rows, &card, &score); err != nil {
			return nil, fmt.Errorf("scan goods page %s: %w", p, err)
		}
		out = append(out, domain.Scored[domain.GoodsCard]{Item: card, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows goods page %s: %w", p, err)
	}
	return out, nil
}

// FetchAllWithScore - все (id, score) партиции для перестроения индекса.
func (r *GoodsRepository) FetchAllWithScore(ctx context.Context, p domain.Partition) ([]domain.IndexEntry, error) {
	q, err := goodsPartitionQuery(p)
	if err != nil {
		return nil, err
	}
	sql, args := q.all()
	return collectEntries(ctx, r.pool, sql, args, "goods "+p.String())
}

// FetchByIDs - карточки по id вне зависимости от статуса.
func (r *GoodsRepository) FetchByIDs(ctx context.Context, ids []int64) ([]domain.GoodsCard, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+cardColumns+`
		FROM goods g JOIN users u ON u.id = g.owner_id
		WHERE g.id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select goods by ids: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GoodsCard, 0, len(ids))
	for rows.Next() {
		var card domain.GoodsCard
		if err := scanCard(rows, &card, nil); err != nil {
			return nil, fmt.Errorf("scan goods: %w", err)
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// FavoritesOf - пользователи, добавившие товар в избранное, и время добавления.
func (r *GoodsRepository) FavoritesOf(ctx context.Context, goodsID int64) ([]domain.IndexEntry, error) {
	sql := `SELECT f.user_id, ` + msExpr("f.create_time") + ` FROM goods_favorite f WHERE f.goods_id = $1`
	return collectEntries(ctx, r.pool, sql, []any{goodsID}, "favorites of goods")
}

func (r *GoodsRepository) StatusOf(ctx context.Context, goodsID int64) (domain.GoodsStatus, error) {
	var st int16
	err := r.pool.QueryRow(ctx, `SELECT status FROM goods WHERE id = $1`, goodsID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("goods %d: %w", goodsID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("select goods status: %w", err)
	}
	return domain.GoodsStatus(st), nil
}

// ReadCounters - долговременные значения collect_num.
func (r *GoodsRepository) ReadCounters(ctx context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, collect_num FROM goods WHERE id = ANY($1::bigint[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("select collect_num: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan collect_num: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// AddCounter - атомарный инкремент колонки; используется, когда кэш недоступен.
func (r *GoodsRepository) AddCounter(ctx context.Context, id, delta int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		UPDATE goods SET collect_num = collect_num + $2 WHERE id = $1 RETURNING collect_num
	`, id, delta).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("goods %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update collect_num: %w", err)
	}
	return n, nil
}

// CompareAndAddCounter - инкремент при условии, что значение не менялось с момента чтения.
// Два согласователя, прочитавшие одно и то же значение, не применят дельту дважды.
func (r *GoodsRepository) CompareAndAddCounter(ctx context.Context, id, expected, delta int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE goods SET collect_num = collect_num + $3 WHERE id = $1 AND collect_num = $2
	`, id, expected, delta)
	if err != nil {
		return false, fmt.Errorf("cas collect_num: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCard(rows pgx.Rows, card *domain.GoodsCard, score *int64) error {
	var (
		description string
		sell, rent  decimal.Decimal
	)
	dest := []any{
		&card.ID, &card.OwnerID, &description, &card.CoverURL, &card.GoodsType, &card.ConditionLevel,
		&card.CategoryID, &sell, &rent, &card.OwnerName, &card.OwnerAvatar, &card.UpdateTimestamp, &card.CollectNum,
	}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	card.BriefDescription = domain.Brief(description)
	card.SellPrice, card.RentPrice = sell, rent
	return nil
}
