package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// querier - общий интерфейс пула и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == uniqueViolationCode
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == foreignKeyViolationCode
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike экранирует спецсимволы шаблона LIKE, чтобы строка искалась буквально.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// notFoundOrConflict отличает отсутствующую запись от записи в другом статусе,
// когда UPDATE ... WHERE status = $n не затронул ни одной строки.
func notFoundOrConflict(ctx context.Context, q querier, table, id string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// insertActivity добавляет запись в журнал tender_activity или bid_activity.
func insertActivity(ctx context.Context, q querier, table, ownerColumn, ownerId string, entry models.ActivityEntry) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, action, description, actor, created_at) VALUES ($1, $2, $3, $4, $5)`, table, ownerColumn)
	if _, err := q.Exec(ctx, query, ownerId, entry.Action, entry.Description, entry.Actor, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}
	return nil
}

func loadActivity(ctx context.Context, q querier, table, ownerColumn, ownerId string) ([]models.ActivityEntry, error) {
	query := fmt.Sprintf(`SELECT action, description, actor, created_at FROM %s WHERE %s = $1 ORDER BY id`, table, ownerColumn)
	rows, err := q.Query(ctx, query, ownerId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ActivityEntry{}
	for rows.Next() {
		var entry models.ActivityEntry
		if err := rows.Scan(&entry.Action, &entry.Description, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
