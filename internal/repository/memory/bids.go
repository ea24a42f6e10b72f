package memory

import (
	"context"
	"sort"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
)

func (s *Store) startEvaluation(tenderId string, entry models.ActivityEntry) {
	t, ok := s.tenders[tenderId]
	if !ok || t.Status != models.ActiveTender {
		return
	}
	t.Status = models.UnderEvaluationTender
	t.UpdatedAt = entry.CreatedAt
	t.Activity = append(t.Activity,
		models.NewActivity(models.ActionEvaluationStart, "Tender moved to evaluation", entry.Actor, entry.CreatedAt))
}

func (s *Store) bidList(match func(b *models.Bid) bool) []models.Bid {
	bids := []models.Bid{}
	for _, b := range s.bids {
		if match(b) {
			c := cloneBid(b)
			c.Comments = nil
			c.Activity = nil
			bids = append(bids, c)
		}
	}
	return bids
}

// CreateBid сохраняет предложение, если тендер ещё принимает предложения.
func (s *Store) CreateBid(_ context.Context, bid *models.Bid, tenderEntry, bidEntry models.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[bid.TenderID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Status != models.ActiveTender || !bid.CreatedAt.Before(t.SubmissionDeadline) {
		return repository.ErrTenderClosed
	}
	for _, b := range s.bids {
		if b.TenderID == bid.TenderID && b.VendorID == bid.VendorID {
			return repository.ErrDuplicate
		}
	}

	c := cloneBid(bid)
	c.Activity = append(c.Activity, bidEntry)
	s.bids[bid.ID] = &c

	t.BidCount++
	t.UpdatedAt = bid.CreatedAt
	t.Activity = append(t.Activity, tenderEntry)
	return nil
}

// GetBidById возвращает предложение с комментариями и журналом.
func (s *Store) GetBidById(_ context.Context, bidId string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneBid(b)
	return &c, nil
}

// GetTenderBids возвращает список предложений для тендера.
func (s *Store) GetTenderBids(_ context.Context, tenderId string, limit, offset int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.bidList(func(b *models.Bid) bool { return b.TenderID == tenderId })
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].ID < bids[j].ID
	})
	return page(bids, limit, offset), nil
}

// GetVendorBids возвращает список предложений поставщика.
func (s *Store) GetVendorBids(_ context.Context, vendorId string, limit, offset int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.bidList(func(b *models.Bid) bool { return b.VendorID == vendorId })
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.After(bids[j].CreatedAt)
		}
		return bids[i].ID < bids[j].ID
	})
	return page(bids, limit, offset), nil
}

// GetCompetingBids возвращает предложения тендера, участвующие в сравнении цен.
func (s *Store) GetCompetingBids(_ context.Context, tenderId string) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.bidList(func(b *models.Bid) bool { return b.TenderID == tenderId && b.Status.Competing() })
	sort.Slice(bids, func(i, j int) bool {
		if cmp := bids[i].Amount.Cmp(bids[j].Amount); cmp != 0 {
			return cmp < 0
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids, nil
}

// UpdateBid меняет поданное предложение, пока тендер открыт.
func (s *Store) UpdateBid(_ context.Context, bidId string, update models.BidUpdate, entry models.ActivityEntry) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != models.SubmittedBid {
		return nil, repository.ErrConflict
	}
	t, ok := s.tenders[b.TenderID]
	if !ok || t.Status != models.ActiveTender || !entry.CreatedAt.Before(t.SubmissionDeadline) {
		return nil, repository.ErrTenderClosed
	}

	update.Apply(b)
	if update.Attachments != nil {
		b.Attachments = append([]string{}, *update.Attachments...)
	}
	b.UpdatedAt = entry.CreatedAt
	b.Activity = append(b.Activity, entry)
	c := cloneBid(b)
	return &c, nil
}

// UpdateBidStatus меняет статус предложения, если он всё ещё равен from.
func (s *Store) UpdateBidStatus(_ context.Context, bidId string, from, to models.BidStatus, entry models.ActivityEntry) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != from {
		return nil, repository.ErrConflict
	}

	b.Status = to
	b.UpdatedAt = entry.CreatedAt
	b.Activity = append(b.Activity, entry)
	if to == models.UnderReviewBid {
		s.startEvaluation(b.TenderID, entry)
	}
	c := cloneBid(b)
	return &c, nil
}

// ScoreBid сохраняет оценку предложения и переводит тендер в стадию оценки.
func (s *Store) ScoreBid(_ context.Context, bidId string, from, to models.BidStatus, score models.Score, entry models.ActivityEntry) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t, ok := s.tenders[b.TenderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !t.Status.Evaluable() || b.Status != from {
		return nil, repository.ErrConflict
	}

	evaluatedAt := entry.CreatedAt
	score.EvaluatedAt = &evaluatedAt
	b.Score = score
	b.Status = to
	b.UpdatedAt = entry.CreatedAt
	b.Activity = append(b.Activity, entry)
	s.startEvaluation(b.TenderID, entry)
	c := cloneBid(b)
	return &c, nil
}

// WithdrawBid снимает предложение и уменьшает счётчик предложений тендера.
func (s *Store) WithdrawBid(_ context.Context, bidId string, from models.BidStatus, tenderEntry, bidEntry models.ActivityEntry) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != from {
		return nil, repository.ErrConflict
	}

	b.Status = models.WithdrawnBid
	b.UpdatedAt = bidEntry.CreatedAt
	b.Activity = append(b.Activity, bidEntry)

	if t, ok := s.tenders[b.TenderID]; ok {
		if t.BidCount > 0 {
			t.BidCount--
		}
		t.UpdatedAt = bidEntry.CreatedAt
		t.Activity = append(t.Activity, tenderEntry)
	}
	c := cloneBid(b)
	return &c, nil
}

// AddBidComment добавляет комментарий к предложению.
func (s *Store) AddBidComment(_ context.Context, comment *models.BidComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bids[comment.BidID]
	if !ok {
		return repository.ErrNotFound
	}
	b.Comments = append(b.Comments, *comment)
	return nil
}

// SaveRankings сохраняет места предложений. Места не участвующих в сравнении предложений сбрасываются.
func (s *Store) SaveRankings(_ context.Context, tenderId string, rankings map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bids {
		if b.TenderID == tenderId && !b.Status.Competing() {
			b.Ranking = 0
		}
	}
	for id, rank := range rankings {
		if b, ok := s.bids[id]; ok && b.TenderID == tenderId {
			b.Ranking = rank
		}
	}
	return nil
}
