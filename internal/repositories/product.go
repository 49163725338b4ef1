package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
)

// ProductReadRepository reads product ownership owned by the catalog service.
type ProductReadRepository struct {
	db *sqlx.DB
}

func NewProductReadRepository(db *sqlx.DB) *ProductReadRepository {
	return &ProductReadRepository{db: db}
}

// CountByUserID returns how many products were created by userID.
func (r *ProductReadRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM products WHERE user_id = $1`

	var count int
	err := r.db.GetContext(ctx, &count, query, userID)

	logger.Log.Infow(
		"query", query,
		"args", []any{userID},
		"result", count,
		"error", err,
	)

	return count, err
}
