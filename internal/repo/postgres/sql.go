package postgres

import (
	"fmt"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// Время в хранилище - timestamptz(3); score - те же миллисекунды эпохи.
// Курсор сравнивается с колонкой, а не с вычисленным score, чтобы работали индексы.
const cursorBound = `(timestamptz 'epoch' + $%d::bigint * interval '1 millisecond')`

func msExpr(col string) string {
	return "(extract(epoch FROM " + col + ") * 1000)::bigint"
}

// partitionQuery - предикат партиции над goods g (и goods_favorite f для избранного).
type partitionQuery struct {
	from      string // FROM ... JOIN ...
	where     string // без курсора
	timeCol   string // колонка порядка
	scopeArgs []any
}

func goodsPartitionQuery(p domain.Partition) (partitionQuery, error) {
	const base = "goods g JOIN users u ON u.id = g.owner_id"
	switch p.Kind {
	case domain.KindAllActive:
		return partitionQuery{from: base, where: "g.status = 1", timeCol: "g.update_time"}, nil
	case domain.KindCategory:
		return partitionQuery{from: base, where: "g.status = 1 AND g.category_id = $1", timeCol: "g.update_time", scopeArgs: []any{p.ScopeID}}, nil
	case domain.KindOwner:
		return partitionQuery{from: base, where: "g.status = 1 AND g.owner_id = $1", timeCol: "g.update_time", scopeArgs: []any{p.ScopeID}}, nil
	case domain.KindOwnerOffline:
		return partitionQuery{from: base, where: "g.status = 4 AND g.owner_id = $1", timeCol: "g.update_time", scopeArgs: []any{p.ScopeID}}, nil
	case domain.KindUserFavorite:
		return partitionQuery{
			from:      "goods_favorite f JOIN goods g ON g.id = f.goods_id JOIN users u ON u.id = g.owner_id",
			where:     "f.user_id = $1 AND g.status = 1",
			timeCol:   "f.create_time",
			scopeArgs: []any{p.ScopeID},
		}, nil
	default:
		return partitionQuery{}, fmt.Errorf("%w: %s is not a goods partition", domain.ErrInvalidPartition, p)
	}
}

// page - SELECT <cols>, score ... WHERE pred AND time < cursor ORDER BY time DESC LIMIT n.
func (q partitionQuery) page(cols string, cursor int64, limit int) (string, []any) {
	n := len(q.scopeArgs)
	sql := fmt.Sprintf(`SELECT %s, %s AS score FROM %s WHERE %s AND %s < `+cursorBound+` ORDER BY %s DESC, g.id DESC LIMIT $%d`,
		cols, msExpr(q.timeCol), q.from, q.where, q.timeCol, n+1, q.timeCol, n+2)
	args := append(append([]any{}, q.scopeArgs...), cursor, limit)
	return sql, args
}

func (q partitionQuery) all() (string, []any) {
	sql := fmt.Sprintf(`SELECT g.id, %s FROM %s WHERE %s`, msExpr(q.timeCol), q.from, q.where)
	return sql, q.scopeArgs
}
