package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/mvoronov/cafeteria-system/internal/model"
)

const benefitColumns = `id, name, description, coins_cost, min_level_cost, adaptation_required, amount, image_url, created_at`

func scanBenefit(row pgx.Row) (*model.Benefit, error) {
	var b model.Benefit
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.CoinsCost, &b.MinLevelCost,
		&b.AdaptationRequired, &b.Amount, &b.ImageURL, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBenefitNotFound
		}
		return nil, fmt.Errorf("scan benefit: %w", err)
	}
	return &b, nil
}

// CreateBenefit создаёт позицию каталога льгот и возвращает её идентификатор.
func (r *PostgresRepository) CreateBenefit(ctx context.Context, b *model.Benefit) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO benefits (name, description, coins_cost, min_level_cost, adaptation_required, amount, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		b.Name, b.Description, b.CoinsCost, b.MinLevelCost, b.AdaptationRequired, b.Amount, b.ImageURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create benefit: %w", err)
	}
	return id, nil
}

// GetBenefitByID возвращает льготу по идентификатору.
func (r *PostgresRepository) GetBenefitByID(ctx context.Context, id int64) (*model.Benefit, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+benefitColumns+` FROM benefits WHERE id = $1`, id)
	return scanBenefit(row)
}

// ListBenefits возвращает каталог льгот в порядке добавления.
func (r *PostgresRepository) ListBenefits(ctx context.Context) ([]model.Benefit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+benefitColumns+` FROM benefits ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select benefits: %w", err)
	}
	defer rows.Close()

	var benefits []model.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		benefits = append(benefits, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return benefits, nil
}

// BenefitUpdate содержит изменяемые поля льготы. Nil-поле не изменяется.
type BenefitUpdate struct {
	Name               *string
	Description        *string
	CoinsCost          *int64
	MinLevelCost       *int64
	AdaptationRequired *bool
	Amount             **int64
	ImageURL           *string
}

// UpdateBenefit изменяет указанные поля льготы.
func (r *PostgresRepository) UpdateBenefit(ctx context.Context, id int64, upd BenefitUpdate) (*model.Benefit, error) {
	set := make([]string, 0, 7)
	args := make([]any, 0, 8)
	args = append(args, id)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.CoinsCost != nil {
		add("coins_cost", *upd.CoinsCost)
	}
	if upd.MinLevelCost != nil {
		add("min_level_cost", *upd.MinLevelCost)
	}
	if upd.AdaptationRequired != nil {
		add("adaptation_required", *upd.AdaptationRequired)
	}
	if upd.Amount != nil {
		add("amount", *upd.Amount)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}

	if len(set) == 0 {
		return r.GetBenefitByID(ctx, id)
	}

	query := `UPDATE benefits SET ` + strings.Join(set, ", ") + ` WHERE id = $1 RETURNING ` + benefitColumns

	row := r.pool.QueryRow(ctx, query, args...)
	return scanBenefit(row)
}

// DeleteBenefit удаляет льготу из каталога.
func (r *PostgresRepository) DeleteBenefit(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM benefits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete benefit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBenefitNotFound
	}
	return nil
}
