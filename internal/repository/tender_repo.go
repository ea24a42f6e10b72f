package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const tenderColumns = `id, number, title, description, category, status, submission_deadline, budget_min, budget_max,
	currency, attachments, bid_count, awarded_bid_id, awarded_to, created_by, created_at, updated_at`

// PostgresTenderRepository - реализация TenderRepository для базы данных.
type PostgresTenderRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresTenderRepository создаёт новый экземпляр PostgresTenderRepository.
func NewPostgresTenderRepository(db *pgxpool.Pool) *PostgresTenderRepository {
	return &PostgresTenderRepository{DB: db}
}

func scanTender(row pgx.Row) (*models.Tender, error) {
	var (
		tender               models.Tender
		budgetMin, budgetMax pgtype.Numeric
	)
	err := row.Scan(
		&tender.ID,
		&tender.Number,
		&tender.Title,
		&tender.Description,
		&tender.Category,
		&tender.Status,
		&tender.SubmissionDeadline,
		&budgetMin,
		&budgetMax,
		&tender.Currency,
		&tender.Attachments,
		&tender.BidCount,
		&tender.AwardedBidID,
		&tender.AwardedTo,
		&tender.CreatedBy,
		&tender.CreatedAt,
		&tender.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	tender.BudgetMin = fromNumeric(budgetMin)
	tender.BudgetMax = fromNumeric(budgetMax)
	return &tender, nil
}

// getTender читает тендер вместе с журналом, при forUpdate блокирует строку до конца транзакции.
func getTender(ctx context.Context, q querier, tenderId string, forUpdate bool) (*models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tender WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	tender, err := scanTender(q.QueryRow(ctx, query, tenderId))
	if err != nil {
		return nil, err
	}
	tender.Activity, err = loadActivity(ctx, q, "tender_activity", "tender_id", tenderId)
	if err != nil {
		return nil, err
	}
	return tender, nil
}

// GetTenders возвращает список тендеров.
func (r *PostgresTenderRepository) GetTenders(ctx context.Context, filter models.TenderFilter) ([]models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tender`
	var filters []string
	var args []interface{}
	argIndex := 1

	if len(filter.Statuses) > 0 {
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.Statuses))
		argIndex++
	}

	if len(filter.Categories) > 0 {
		filters = append(filters, fmt.Sprintf("category = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.Categories))
		argIndex++
	}

	if filter.Search != "" {
		filters = append(filters, fmt.Sprintf("title ILIKE '%%' || $%d || '%%' ESCAPE '\\'", argIndex))
		args = append(args, escapeLike(filter.Search))
		argIndex++
	}

	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, number LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenders := []models.Tender{}
	for rows.Next() {
		tender, err := scanTender(rows)
		if err != nil {
			return nil, err
		}
		tenders = append(tenders, *tender)
	}
	return tenders, rows.Err()
}

// GetTenderById возвращает тендер с журналом действий.
func (r *PostgresTenderRepository) GetTenderById(ctx context.Context, tenderId string) (*models.Tender, error) {
	return getTender(ctx, r.DB, tenderId, false)
}

// CreateTender сохраняет новый тендер и его первые записи журнала.
func (r *PostgresTenderRepository) CreateTender(ctx context.Context, tender *models.Tender) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO tender (id, number, title, description, category, status, submission_deadline, budget_min, budget_max,
			                    currency, attachments, bid_count, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $14)`,
			tender.ID,
			tender.Number,
			tender.Title,
			tender.Description,
			tender.Category,
			tender.Status,
			tender.SubmissionDeadline,
			toNumeric(tender.BudgetMin),
			toNumeric(tender.BudgetMax),
			tender.Currency,
			tender.Attachments,
			tender.CreatedBy,
			tender.CreatedAt,
			tender.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert tender: %w", err)
		}

		for _, entry := range tender.Activity {
			if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tender.ID, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTender меняет переданные поля нетерминального тендера.
func (r *PostgresTenderRepository) UpdateTender(ctx context.Context, tenderId string, update models.TenderUpdate, entry models.ActivityEntry) (*models.Tender, error) {
	var updated *models.Tender
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		current, err := getTender(ctx, tx, tenderId, true)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return ErrConflict
		}

		update.Apply(current)
		_, err = tx.Exec(ctx, `
			UPDATE tender
			SET title = $1, description = $2, category = $3, budget_min = $4, budget_max = $5,
			    currency = $6, attachments = $7, updated_at = $8
			WHERE id = $9`,
			current.Title,
			current.Description,
			current.Category,
			toNumeric(current.BudgetMin),
			toNumeric(current.BudgetMax),
			current.Currency,
			current.Attachments,
			entry.CreatedAt,
			tenderId)
		if err != nil {
			return fmt.Errorf("failed to update tender: %w", err)
		}

		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, entry); err != nil {
			return err
		}
		updated, err = getTender(ctx, tx, tenderId, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateTenderStatus меняет статус тендера, если он всё ещё равен from.
func (r *PostgresTenderRepository) UpdateTenderStatus(ctx context.Context, tenderId string, from, to models.TenderStatus, entry models.ActivityEntry) (*models.Tender, error) {
	var updated *models.Tender
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE tender SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			to, entry.CreatedAt, tenderId, from)
		if err != nil {
			return fmt.Errorf("failed to update tender status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundOrConflict(ctx, tx, "tender", tenderId)
		}

		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, entry); err != nil {
			return err
		}
		updated, err = getTender(ctx, tx, tenderId, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExtendDeadline переносит срок подачи предложений и при необходимости открывает тендер заново.
func (r *PostgresTenderRepository) ExtendDeadline(ctx context.Context, tenderId string, from, to models.TenderStatus, deadline time.Time, entry models.ActivityEntry) (*models.Tender, error) {
	var updated *models.Tender
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tender SET submission_deadline = $1, status = $2, updated_at = $3
			WHERE id = $4 AND status = $5 AND submission_deadline < $1`,
			deadline, to, entry.CreatedAt, tenderId, from)
		if err != nil {
			return fmt.Errorf("failed to extend tender deadline: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundOrConflict(ctx, tx, "tender", tenderId)
		}

		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, entry); err != nil {
			return err
		}
		updated, err = getTender(ctx, tx, tenderId, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AwardTender выбирает победителя и отклоняет остальные действующие предложения в одной транзакции.
func (r *PostgresTenderRepository) AwardTender(ctx context.Context, tenderId, bidId, actor string, at time.Time) (*models.Tender, error) {
	var awarded *models.Tender
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		tender, err := getTender(ctx, tx, tenderId, true)
		if err != nil {
			return err
		}
		if !tender.Status.Evaluable() {
			return ErrConflict
		}

		var (
			bidTenderId, vendorName string
			bidStatus               models.BidStatus
		)
		err = tx.QueryRow(ctx, `SELECT tender_id, vendor_name, status FROM bid WHERE id = $1 FOR UPDATE`, bidId).
			Scan(&bidTenderId, &vendorName, &bidStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if bidTenderId != tenderId {
			return ErrBidMismatch
		}
		if !bidStatus.UnderConsideration() {
			return ErrConflict
		}

		if _, err := tx.Exec(ctx, `UPDATE bid SET status = $1, updated_at = $2 WHERE id = $3`,
			models.AwardedBid, at, bidId); err != nil {
			return fmt.Errorf("failed to award bid: %w", err)
		}
		awardEntry := models.NewActivity(models.ActionAwarded, "Bid selected as the winning bid", actor, at)
		if err := insertActivity(ctx, tx, "bid_activity", "bid_id", bidId, awardEntry); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			UPDATE bid SET status = $1, updated_at = $2
			WHERE tender_id = $3 AND id <> $4 AND status <> ALL($5)
			RETURNING id`,
			models.RejectedBid, at, tenderId, bidId,
			pq.Array([]string{string(models.WithdrawnBid), string(models.DraftBid), string(models.RejectedBid)}))
		if err != nil {
			return fmt.Errorf("failed to reject sibling bids: %w", err)
		}
		rejected, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		rejectEntry := models.NewActivity(models.ActionRejected, "Tender awarded to another bid", actor, at)
		for _, id := range rejected {
			if err := insertActivity(ctx, tx, "bid_activity", "bid_id", id, rejectEntry); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE tender SET status = $1, awarded_bid_id = $2, awarded_to = $3, updated_at = $4
			WHERE id = $5`,
			models.AwardedTender, bidId, vendorName, at, tenderId); err != nil {
			return fmt.Errorf("failed to award tender: %w", err)
		}
		tenderEntry := models.NewActivity(models.ActionAwarded, fmt.Sprintf("Tender awarded to %s", vendorName), actor, at)
		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, tenderEntry); err != nil {
			return err
		}

		awarded, err = getTender(ctx, tx, tenderId, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return awarded, nil
}

// DeleteTenders удаляет тендеры вместе с предложениями и возвращает число удалённых тендеров.
func (r *PostgresTenderRepository) DeleteTenders(ctx context.Context, tenderIds []string) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM bid WHERE tender_id = ANY($1)`, pq.Array(tenderIds)); err != nil {
			return fmt.Errorf("failed to delete bids: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM tender WHERE id = ANY($1)`, pq.Array(tenderIds))
		if err != nil {
			return fmt.Errorf("failed to delete tenders: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}

// PostgresTenderNumberGenerator ведёт счётчик номеров тендеров в таблице tender_number_seq.
type PostgresTenderNumberGenerator struct {
	DB *pgxpool.Pool
}

// NewPostgresTenderNumberGenerator создаёт новый экземпляр PostgresTenderNumberGenerator.
func NewPostgresTenderNumberGenerator(db *pgxpool.Pool) *PostgresTenderNumberGenerator {
	return &PostgresTenderNumberGenerator{DB: db}
}

// NextTenderNumber возвращает следующий номер за год.
func (g *PostgresTenderNumberGenerator) NextTenderNumber(ctx context.Context, year int) (int64, error) {
	var value int64
	err := g.DB.QueryRow(ctx, `
		INSERT INTO tender_number_seq (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = tender_number_seq.value + 1
		RETURNING value`, year).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate tender number: %w", err)
	}
	return value, nil
}
