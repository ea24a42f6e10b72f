package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const bidColumns = `id, tender_id, vendor_id, vendor_name, amount, currency, technical_proposal, financial_proposal,
	attachments, status, score_technical, score_financial, score_compliance, score_experience, score_overall,
	score_model, evaluated_by, evaluated_at, ranking, created_at, updated_at`

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var (
		bid    models.Bid
		amount pgtype.Numeric
	)
	err := row.Scan(
		&bid.ID,
		&bid.TenderID,
		&bid.VendorID,
		&bid.VendorName,
		&amount,
		&bid.Currency,
		&bid.TechnicalProposal,
		&bid.FinancialProposal,
		&bid.Attachments,
		&bid.Status,
		&bid.Score.Technical,
		&bid.Score.Financial,
		&bid.Score.Compliance,
		&bid.Score.Experience,
		&bid.Score.Overall,
		&bid.Score.Model,
		&bid.Score.EvaluatedBy,
		&bid.Score.EvaluatedAt,
		&bid.Ranking,
		&bid.CreatedAt,
		&bid.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	bid.Amount = fromNumeric(amount)
	return &bid, nil
}

func collectBids(rows pgx.Rows) ([]models.Bid, error) {
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

// getBid читает предложение с комментариями и журналом.
func getBid(ctx context.Context, q querier, bidId string) (*models.Bid, error) {
	bid, err := scanBid(q.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1`, bidId))
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, bid_id, author, author_role, text, created_at
		FROM bid_comment WHERE bid_id = $1 ORDER BY created_at, id`, bidId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bid.Comments = []models.BidComment{}
	for rows.Next() {
		var comment models.BidComment
		if err := rows.Scan(&comment.ID, &comment.BidID, &comment.Author, &comment.AuthorRole, &comment.Text, &comment.CreatedAt); err != nil {
			return nil, err
		}
		bid.Comments = append(bid.Comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bid.Activity, err = loadActivity(ctx, q, "bid_activity", "bid_id", bidId)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// startEvaluation переводит активный тендер в under_evaluation при первой оценке предложения.
func startEvaluation(ctx context.Context, tx pgx.Tx, tenderId, actor string, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE tender SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.UnderEvaluationTender, at, tenderId, models.ActiveTender)
	if err != nil {
		return fmt.Errorf("failed to start tender evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	entry := models.NewActivity(models.ActionEvaluationStart, "Tender moved to evaluation", actor, at)
	return insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, entry)
}

// CreateBid сохраняет предложение, если тендер ещё принимает предложения.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid *models.Bid, tenderEntry, bidEntry models.ActivityEntry) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tender SET bid_count = bid_count + 1, updated_at = $1
			WHERE id = $2 AND status = $3 AND submission_deadline > $1`,
			bid.CreatedAt, bid.TenderID, models.ActiveTender)
		if err != nil {
			return fmt.Errorf("failed to reserve tender: %w", err)
		}
		if tag.RowsAffected() == 0 {
			err = notFoundOrConflict(ctx, tx, "tender", bid.TenderID)
			if errors.Is(err, ErrConflict) {
				return ErrTenderClosed
			}
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bid (id, tender_id, vendor_id, vendor_name, amount, currency, technical_proposal, financial_proposal,
			                 attachments, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			bid.ID,
			bid.TenderID,
			bid.VendorID,
			bid.VendorName,
			toNumeric(bid.Amount),
			bid.Currency,
			bid.TechnicalProposal,
			bid.FinancialProposal,
			bid.Attachments,
			bid.Status,
			bid.CreatedAt,
			bid.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", bid.TenderID, tenderEntry); err != nil {
			return err
		}
		return insertActivity(ctx, tx, "bid_activity", "bid_id", bid.ID, bidEntry)
	})
}

// GetBidById возвращает предложение с комментариями и журналом.
func (r *PostgresBidRepository) GetBidById(ctx context.Context, bidId string) (*models.Bid, error) {
	return getBid(ctx, r.DB, bidId)
}

// GetTenderBids возвращает список предложений для тендера.
func (r *PostgresBidRepository) GetTenderBids(ctx context.Context, tenderId string, limit, offset int) ([]models.Bid, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bid
		WHERE tender_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, tenderId, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

// GetVendorBids возвращает список предложений поставщика.
func (r *PostgresBidRepository) GetVendorBids(ctx context.Context, vendorId string, limit, offset int) ([]models.Bid, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bid
		WHERE vendor_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, vendorId, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

// GetCompetingBids возвращает предложения тендера, участвующие в сравнении цен.
func (r *PostgresBidRepository) GetCompetingBids(ctx context.Context, tenderId string) ([]models.Bid, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bid
		WHERE tender_id = $1 AND status <> ALL($2)
		ORDER BY amount, created_at`,
		tenderId,
		pq.Array([]string{string(models.WithdrawnBid), string(models.RejectedBid), string(models.DraftBid)}))
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

// UpdateBid меняет поданное предложение, пока тендер открыт.
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, bidId string, update models.BidUpdate, entry models.ActivityEntry) (*models.Bid, error) {
	var updated *models.Bid
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		current, err := scanBid(tx.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1 FOR UPDATE`, bidId))
		if err != nil {
			return err
		}
		if current.Status != models.SubmittedBid {
			return ErrConflict
		}

		var open bool
		err = tx.QueryRow(ctx, `
			SELECT status = $2 AND submission_deadline > $3 FROM tender WHERE id = $1 FOR SHARE`,
			current.TenderID, models.ActiveTender, entry.CreatedAt).Scan(&open)
		if err != nil {
			return fmt.Errorf("failed to check tender: %w", err)
		}
		if !open {
			return ErrTenderClosed
		}

		update.Apply(current)
		_, err = tx.Exec(ctx, `
			UPDATE bid
			SET amount = $1, currency = $2, technical_proposal = $3, financial_proposal = $4, attachments = $5, updated_at = $6
			WHERE id = $7`,
			toNumeric(current.Amount),
			current.Currency,
			current.TechnicalProposal,
			current.FinancialProposal,
			current.Attachments,
			entry.CreatedAt,
			bidId)
		if err != nil {
			return fmt.Errorf("failed to update bid: %w", err)
		}

		if err := insertActivity(ctx, tx, "bid_activity", "bid_id", bidId, entry); err != nil {
			return err
		}
		updated, err = getBid(ctx, tx, bidId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateBidStatus меняет статус предложения, если он всё ещё равен from.
func (r *PostgresBidRepository) UpdateBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, entry models.ActivityEntry) (*models.Bid, error) {
	var updated *models.Bid
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var tenderId string
		err := tx.QueryRow(ctx, `
			UPDATE bid SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4
			RETURNING tender_id`, to, entry.CreatedAt, bidId, from).Scan(&tenderId)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFoundOrConflict(ctx, tx, "bid", bidId)
			}
			return fmt.Errorf("failed to update bid status: %w", err)
		}

		if err := insertActivity(ctx, tx, "bid_activity", "bid_id", bidId, entry); err != nil {
			return err
		}
		if to == models.UnderReviewBid {
			if err := startEvaluation(ctx, tx, tenderId, entry.Actor, entry.CreatedAt); err != nil {
				return err
			}
		}
		updated, err = getBid(ctx, tx, bidId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ScoreBid сохраняет оценку предложения и переводит тендер в стадию оценки.
func (r *PostgresBidRepository) ScoreBid(ctx context.Context, bidId string, from, to models.BidStatus, score models.Score, entry models.ActivityEntry) (*models.Bid, error) {
	var updated *models.Bid
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var tenderStatus models.TenderStatus
		err := tx.QueryRow(ctx, `
			SELECT t.status FROM tender t JOIN bid b ON b.tender_id = t.id
			WHERE b.id = $1 FOR UPDATE OF t`, bidId).Scan(&tenderStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !tenderStatus.Evaluable() {
			return ErrConflict
		}

		var tenderId string
		err = tx.QueryRow(ctx, `
			UPDATE bid
			SET status = $1, score_technical = $2, score_financial = $3, score_compliance = $4, score_experience = $5,
			    score_overall = $6, score_model = $7, evaluated_by = $8, evaluated_at = $9, updated_at = $9
			WHERE id = $10 AND status = $11
			RETURNING tender_id`,
			to,
			score.Technical,
			score.Financial,
			score.Compliance,
			score.Experience,
			score.Overall,
			score.Model,
			score.EvaluatedBy,
			entry.CreatedAt,
			bidId,
			from).Scan(&tenderId)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrConflict
			}
			return fmt.Errorf("failed to score bid: %w", err)
		}

		if err := insertActivity(ctx, tx, "bid_activity", "bid_id", bidId, entry); err != nil {
			return err
		}
		if err := startEvaluation(ctx, tx, tenderId, entry.Actor, entry.CreatedAt); err != nil {
			return err
		}
		updated, err = getBid(ctx, tx, bidId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// WithdrawBid снимает предложение и уменьшает счётчик предложений тендера.
func (r *PostgresBidRepository) WithdrawBid(ctx context.Context, bidId string, from models.BidStatus, tenderEntry, bidEntry models.ActivityEntry) (*models.Bid, error) {
	var updated *models.Bid
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var tenderId string
		err := tx.QueryRow(ctx, `
			UPDATE bid SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4
			RETURNING tender_id`, models.WithdrawnBid, bidEntry.CreatedAt, bidId, from).Scan(&tenderId)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFoundOrConflict(ctx, tx, "bid", bidId)
			}
			return fmt.Errorf("failed to withdraw bid: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE tender SET bid_count = bid_count - 1, updated_at = $1
			WHERE id = $2 AND bid_count > 0`, bidEntry.CreatedAt, tenderId); err != nil {
			return fmt.Errorf("failed to update bid count: %w", err)
		}

		if err := insertActivity(ctx, tx, "tender_activity", "tender_id", tenderId, tenderEntry); err != nil {
			return err
		}
		if err := insertActivity(ctx, tx, "bid_activity", "bid_id", bidId, bidEntry); err != nil {
			return err
		}
		updated, err = getBid(ctx, tx, bidId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddBidComment добавляет комментарий к предложению.
func (r *PostgresBidRepository) AddBidComment(ctx context.Context, comment *models.BidComment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bid_comment (id, bid_id, author, author_role, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID, comment.BidID, comment.Author, comment.AuthorRole, comment.Text, comment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to insert bid comment: %w", err)
	}
	return nil
}

// SaveRankings сохраняет места предложений одним пакетом запросов.
// Снятые, отклонённые и черновые предложения тендера теряют прежнее место.
func (r *PostgresBidRepository) SaveRankings(ctx context.Context, tenderId string, rankings map[string]int) error {
	batch := &pgx.Batch{}
	batch.Queue(`UPDATE bid SET ranking = 0 WHERE tender_id = $1 AND status = ANY($2)`,
		tenderId, pq.Array([]string{string(models.WithdrawnBid), string(models.RejectedBid), string(models.DraftBid)}))
	for bidId, rank := range rankings {
		batch.Queue(`UPDATE bid SET ranking = $1 WHERE id = $2 AND tender_id = $3`, rank, bidId, tenderId)
	}

	results := r.DB.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to save rankings: %w", err)
		}
	}
	return results.Close()
}
