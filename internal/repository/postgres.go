// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrBenefitNotFound возвращается, если льгота не найдена.
	ErrBenefitNotFound = errors.New("benefit not found")
	// ErrRequestNotFound возвращается, если заявка не найдена.
	ErrRequestNotFound = errors.New("benefit request not found")
	// ErrSessionNotFound возвращается, если сессия не найдена или истекла.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotAdapted возвращается при запросе льготы, требующей пройденной адаптации.
	ErrNotAdapted = errors.New("user has not passed adaptation period")
	// ErrInsufficientCoins возвращается, если коинов пользователя не хватает на льготу.
	ErrInsufficientCoins = errors.New("user does not have enough coins")
	// ErrInsufficientLevel возвращается, если уровень пользователя ниже требуемого.
	ErrInsufficientLevel = errors.New("user does not have required level")
	// ErrInsufficientAmount возвращается при исчерпанном остатке льготы.
	ErrInsufficientAmount = errors.New("insufficient benefit amount")

	// ErrRequestTerminal возвращается при попытке изменить одобренную или отклонённую заявку.
	ErrRequestTerminal = errors.New("benefit request is already approved or declined")
	// ErrPermissionDenied возвращается, если у пользователя нет прав на операцию.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAlreadyClaimed возвращается при проигранной гонке за назначение исполнителя.
	ErrAlreadyClaimed = errors.New("request already claimed by another performer")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
