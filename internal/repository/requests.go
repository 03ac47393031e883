package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mvoronov/cafeteria-system/internal/authz"
	"github.com/mvoronov/cafeteria-system/internal/model"
)

const requestColumns = `id, benefit_id, user_id, performer_id, status, content, comment, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.BenefitRequest, error) {
	var req model.BenefitRequest
	err := row.Scan(
		&req.ID, &req.BenefitID, &req.UserID, &req.PerformerID,
		&req.Status, &req.Content, &req.Comment, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("scan benefit request: %w", err)
	}
	return &req, nil
}

// CreateBenefitRequest атомарно резервирует ресурсы и создаёт заявку.
//
// В одной транзакции блокируются строки льготы и пользователя, после чего
// проверки выполняются в фиксированном порядке: существование льготы,
// существование пользователя, адаптация, коины, уровень, остаток. Любой
// провал откатывает транзакцию целиком.
func (r *PostgresRepository) CreateBenefitRequest(ctx context.Context, userID, benefitID int64, content string) (*model.BenefitRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	benefit, err := lockBenefit(ctx, tx, benefitID)
	if err != nil {
		return nil, err
	}

	user, err := lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if benefit.AdaptationRequired && !user.IsAdapted {
		return nil, ErrNotAdapted
	}

	if user.Coins < benefit.CoinsCost {
		return nil, ErrInsufficientCoins
	}

	if user.Level(time.Now()) < benefit.MinLevelCost {
		return nil, ErrInsufficientLevel
	}

	if benefit.Amount != nil {
		if *benefit.Amount-1 < 0 {
			return nil, ErrInsufficientAmount
		}
		if _, err := tx.Exec(ctx,
			`UPDATE benefits SET amount = amount - 1 WHERE id = $1`, benefit.ID,
		); err != nil {
			return nil, fmt.Errorf("decrement benefit amount: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET coins = coins - $2 WHERE id = $1`, user.ID, benefit.CoinsCost,
	); err != nil {
		return nil, fmt.Errorf("decrement user coins: %w", err)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO benefit_requests (benefit_id, user_id, status, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+requestColumns,
		benefit.ID, user.ID, string(model.StatusPending), content,
	)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return req, nil
}

// UpdateBenefitRequest выполняет переход заявки в новый статус от имени actor.
//
// Терминальная заявка не изменяется. При переходе в declined резервирование
// возвращается ровно в тех количествах, что были удержаны при создании:
// остаток льготы +1, коины пользователя +coins_cost. Назначение исполнителя
// выполняется условным UPDATE, чтобы проигранный клейм был виден по числу
// затронутых строк.
func (r *PostgresRepository) UpdateBenefitRequest(ctx context.Context, id int64, upd model.RequestUpdate, actor model.Actor) (*model.BenefitRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if req.Status.Terminal() {
		return nil, ErrRequestTerminal
	}

	benefit, err := lockBenefit(ctx, tx, req.BenefitID)
	if err != nil {
		return nil, err
	}

	owner, err := lockUser(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	newStatus := req.Status
	if upd.Status != nil {
		newStatus = *upd.Status
	}

	if !authz.CanUpdateRequest(actor, req, owner.LegalEntityID, newStatus) {
		return nil, ErrPermissionDenied
	}

	if authz.ClaimsPerformer(actor, req) {
		tag, err := tx.Exec(ctx,
			`UPDATE benefit_requests SET performer_id = $2 WHERE id = $1 AND performer_id IS NULL`,
			req.ID, actor.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("claim performer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrAlreadyClaimed
		}
	}

	if newStatus == model.StatusDeclined && req.Status.HoldsReservation() {
		if err := refundReservation(ctx, tx, benefit, owner.ID); err != nil {
			return nil, err
		}
	}

	set := []string{"updated_at = now()"}
	args := []any{req.ID}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	if upd.Comment != nil {
		add("comment", *upd.Comment)
	}

	row := tx.QueryRow(ctx,
		`UPDATE benefit_requests SET `+strings.Join(set, ", ")+` WHERE id = $1 RETURNING `+requestColumns,
		args...,
	)
	updated, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// DeleteBenefitRequest удаляет заявку, возвращая резервирование только если
// заявка всё ещё его удерживает (pending или approved). Удаление уже
// отклонённой заявки ресурсы не трогает — повторный возврат невозможен.
func (r *PostgresRepository) DeleteBenefitRequest(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, id)
	if err != nil {
		return err
	}

	if req.Status.HoldsReservation() {
		benefit, err := lockBenefit(ctx, tx, req.BenefitID)
		if err != nil {
			return err
		}
		if err := refundReservation(ctx, tx, benefit, req.UserID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM benefit_requests WHERE id = $1`, req.ID); err != nil {
		return fmt.Errorf("delete benefit request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBenefitRequest возвращает заявку по идентификатору.
func (r *PostgresRepository) GetBenefitRequest(ctx context.Context, id int64) (*model.BenefitRequest, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM benefit_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// RequestFilter задаёт фильтры, сортировку и пагинацию списка заявок.
type RequestFilter struct {
	Status        *model.RequestStatus
	UserID        *int64
	PerformerID   *int64
	LegalEntityID *int64
	SortBy        string
	SortOrder     string
	Page          int
	Limit         int
}

// Допустимые поля сортировки списка заявок.
var requestSortColumns = map[string]string{
	"id":         "r.id",
	"status":     "r.status",
	"created_at": "r.created_at",
}

// ListBenefitRequests возвращает страницу заявок по фильтру.
func (r *PostgresRepository) ListBenefitRequests(ctx context.Context, f RequestFilter) ([]model.BenefitRequest, error) {
	query := `SELECT r.id, r.benefit_id, r.user_id, r.performer_id, r.status, r.content, r.comment, r.created_at, r.updated_at
	          FROM benefit_requests r
	          JOIN users u ON u.id = r.user_id`

	var (
		where []string
		args  []any
	)

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != nil {
		add("r.status = $%d", string(*f.Status))
	}
	if f.UserID != nil {
		add("r.user_id = $%d", *f.UserID)
	}
	if f.PerformerID != nil {
		add("r.performer_id = $%d", *f.PerformerID)
	}
	if f.LegalEntityID != nil {
		add("u.legal_entity_id = $%d", *f.LegalEntityID)
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	sortColumn, ok := requestSortColumns[f.SortBy]
	if !ok {
		sortColumn = "r.created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortColumn, order)

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select benefit requests: %w", err)
	}
	defer rows.Close()

	var requests []model.BenefitRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}

// RequestExportRow описывает строку выгрузки реестра заявок.
type RequestExportRow struct {
	ID                int64
	Status            model.RequestStatus
	Comment           string
	BenefitName       string
	UserEmail         string
	UserFullname      string
	PerformerEmail    string
	PerformerFullname string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ListRequestsForExport возвращает заявки с данными льготы, автора и
// исполнителя для выгрузки в Excel.
func (r *PostgresRepository) ListRequestsForExport(ctx context.Context, f RequestFilter) ([]RequestExportRow, error) {
	query := `SELECT r.id, r.status, r.comment, b.name,
	                 u.email, u.lastname || ' ' || u.firstname,
	                 COALESCE(p.email, ''), COALESCE(p.lastname || ' ' || p.firstname, ''),
	                 r.created_at, r.updated_at
	          FROM benefit_requests r
	          JOIN benefits b ON b.id = r.benefit_id
	          JOIN users u ON u.id = r.user_id
	          LEFT JOIN users p ON p.id = r.performer_id`

	var (
		where []string
		args  []any
	)

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != nil {
		add("r.status = $%d", string(*f.Status))
	}
	if f.LegalEntityID != nil {
		add("u.legal_entity_id = $%d", *f.LegalEntityID)
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select requests for export: %w", err)
	}
	defer rows.Close()

	var res []RequestExportRow
	for rows.Next() {
		var row RequestExportRow
		if err := rows.Scan(
			&row.ID, &row.Status, &row.Comment, &row.BenefitName,
			&row.UserEmail, &row.UserFullname,
			&row.PerformerEmail, &row.PerformerFullname,
			&row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// lockRequest читает заявку с блокировкой строки на время транзакции.
func lockRequest(ctx context.Context, tx pgx.Tx, id int64) (*model.BenefitRequest, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM benefit_requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

// lockBenefit читает льготу с блокировкой строки на время транзакции.
// Блокировка сериализует конкурирующие изменения остатка: из двух
// одновременных заявок на льготу с amount = 1 вторая перечитает остаток 0.
func lockBenefit(ctx context.Context, tx pgx.Tx, id int64) (*model.Benefit, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+benefitColumns+` FROM benefits WHERE id = $1 FOR UPDATE`, id)
	return scanBenefit(row)
}

// lockUser читает пользователя с блокировкой строки на время транзакции.
func lockUser(ctx context.Context, tx pgx.Tx, id int64) (*model.User, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

// refundReservation возвращает удержанные при создании заявки ресурсы:
// остаток льготы +1 (если он конечен) и коины пользователя +coins_cost.
func refundReservation(ctx context.Context, tx pgx.Tx, benefit *model.Benefit, userID int64) error {
	if benefit.Amount != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE benefits SET amount = amount + 1 WHERE id = $1`, benefit.ID,
		); err != nil {
			return fmt.Errorf("increment benefit amount: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET coins = coins + $2 WHERE id = $1`, userID, benefit.CoinsCost,
	); err != nil {
		return fmt.Errorf("increment user coins: %w", err)
	}

	return nil
}
