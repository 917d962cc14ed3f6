package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier - общая часть *pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore - реализация Store для базы данных.
type PostgresStore struct {
	DB *pgxpool.Pool
	q  querier
}

// NewPostgresStore создает новый экземпляр PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db, q: db}
}

// InTx выполняет fn в транзакции read committed. Вложенный вызов
// переиспользует текущую транзакцию.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&PostgresStore{DB: s.DB, q: tx})
	})
}

func (s *PostgresStore) Transactional() bool { return true }

func notFound(err error, notFoundErr error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr
	}
	return err
}

// validID сообщает, что id может быть ключом в базе. Иначе запрос упадет
// на приведении к UUID, а вызывающий должен получить NotFound.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isUniqueViolation сообщает о нарушении уникального индекса.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
