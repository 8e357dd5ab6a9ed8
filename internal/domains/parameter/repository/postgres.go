package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/parameter/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresParameterRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresParameterRepository(pool *pgxpool.Pool) ParameterRepository {
	return &postgresParameterRepository{
		pool: pool,
	}
}

const parameterColumns = `
	id, name, entity_type, entity_id, value,
	effective_date, expiration_date, overridable, version, created_at, created_by
`

func (r *postgresParameterRepository) GetEffective(ctx context.Context, name, entityType, entityID string, at time.Time) (*model.Parameter, error) {
	query := `
		SELECT ` + parameterColumns + `
		FROM parameters
		WHERE name = $1 AND entity_type = $2 AND entity_id = $3
		  AND effective_date <= $4
		  AND (expiration_date IS NULL OR expiration_date > $4)
		ORDER BY effective_date DESC
		LIMIT 1
	`

	param, err := r.scanOne(r.pool.QueryRow(ctx, query, name, entityType, entityID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrParameterNotFound
		}
		return nil, fmt.Errorf("failed to get effective parameter: %w", err)
	}

	return param, nil
}

func (r *postgresParameterRepository) Create(ctx context.Context, param *model.Parameter) error {
	query := `
		INSERT INTO parameters (
			id, name, entity_type, entity_id, value,
			effective_date, expiration_date, overridable, version, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		param.ID,
		param.Name,
		param.EntityType,
		param.EntityID,
		param.Value,
		param.EffectiveDate,
		param.ExpirationDate,
		param.Overridable,
		param.Version,
		param.CreatedBy,
	).Scan(&param.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique violation on (name, entity_type, entity_id, effective_date)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &model.ConflictError{
				Name:       param.Name,
				EntityType: param.EntityType,
				EntityID:   param.EntityID,
			}
		}
		return fmt.Errorf("failed to create parameter: %w", err)
	}

	return nil
}

func (r *postgresParameterRepository) List(ctx context.Context, filter model.ListParametersRequest) ([]*model.Parameter, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name = $%d", argPos))
		args = append(args, filter.Name)
		argPos++
	}
	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argPos))
		args = append(args, filter.EntityType)
		argPos++
	}
	if filter.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, filter.EntityID)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM parameters WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count parameters: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM parameters
		WHERE %s
		ORDER BY name, entity_type, effective_date DESC
		LIMIT $%d OFFSET $%d
	`, parameterColumns, where, argPos, argPos+1)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list parameters: %w", err)
	}
	defer rows.Close()

	var params []*model.Parameter
	for rows.Next() {
		param, err := r.scanOne(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan parameter: %w", err)
		}
		params = append(params, param)
	}

	return params, total, rows.Err()
}

func (r *postgresParameterRepository) scanOne(row pgx.Row) (*model.Parameter, error) {
	var param model.Parameter
	err := row.Scan(
		&param.ID,
		&param.Name,
		&param.EntityType,
		&param.EntityID,
		&param.Value,
		&param.EffectiveDate,
		&param.ExpirationDate,
		&param.Overridable,
		&param.Version,
		&param.CreatedAt,
		&param.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &param, nil
}
