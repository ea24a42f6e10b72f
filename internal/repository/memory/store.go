// Package memory хранит данные сервиса в памяти процесса.
// Store реализует все интерфейсы пакета repository и используется при STORAGE_DRIVER=memory и в тестах.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
)

// Store - хранилище в памяти. Все операции выполняются под одним мьютексом.
type Store struct {
	mu       sync.Mutex
	tenders  map[string]*models.Tender
	bids     map[string]*models.Bid
	vehicles map[string]*models.Vehicle
	bookings map[string]*models.Booking
	numbers  map[int]int64

	// Now задаёт время изменения транспорта.
	Now func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		tenders:  make(map[string]*models.Tender),
		bids:     make(map[string]*models.Bid),
		vehicles: make(map[string]*models.Vehicle),
		bookings: make(map[string]*models.Booking),
		numbers:  make(map[int]int64),
		Now:      time.Now,
	}
}

var (
	_ repository.TenderRepository      = (*Store)(nil)
	_ repository.TenderNumberGenerator = (*Store)(nil)
	_ repository.BidRepository         = (*Store)(nil)
	_ repository.VehicleRepository     = (*Store)(nil)
	_ repository.BookingRepository     = (*Store)(nil)
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTender(t *models.Tender) models.Tender {
	c := *t
	c.Attachments = append([]string{}, t.Attachments...)
	c.Activity = append([]models.ActivityEntry{}, t.Activity...)
	c.AwardedBidID = cloneString(t.AwardedBidID)
	return c
}

func cloneBid(b *models.Bid) models.Bid {
	c := *b
	c.Attachments = append([]string{}, b.Attachments...)
	c.Comments = append([]models.BidComment{}, b.Comments...)
	c.Activity = append([]models.ActivityEntry{}, b.Activity...)
	c.Score.EvaluatedAt = cloneTime(b.Score.EvaluatedAt)
	return c
}

func cloneBooking(b *models.Booking) models.Booking {
	c := *b
	c.VehicleID = cloneString(b.VehicleID)
	c.AssignedAt = cloneTime(b.AssignedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	return c
}

// GetTenders возвращает список тендеров.
func (s *Store) GetTenders(_ context.Context, filter models.TenderFilter) ([]models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	tenders := []models.Tender{}
	for _, t := range s.tenders {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, string(t.Status)) {
			continue
		}
		if len(filter.Categories) > 0 && !contains(filter.Categories, string(t.Category)) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		c := cloneTender(t)
		c.Activity = nil
		tenders = append(tenders, c)
	}

	sort.Slice(tenders, func(i, j int) bool {
		if !tenders[i].CreatedAt.Equal(tenders[j].CreatedAt) {
			return tenders[i].CreatedAt.After(tenders[j].CreatedAt)
		}
		return tenders[i].Number < tenders[j].Number
	})
	return page(tenders, filter.Limit, filter.Offset), nil
}

// GetTenderById возвращает тендер с журналом действий.
func (s *Store) GetTenderById(_ context.Context, tenderId string) (*models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[tenderId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneTender(t)
	return &c, nil
}

// CreateTender сохраняет новый тендер.
func (s *Store) CreateTender(_ context.Context, tender *models.Tender) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenders {
		if t.Number == tender.Number || t.ID == tender.ID {
			return repository.ErrDuplicate
		}
	}
	c := cloneTender(tender)
	c.BidCount = 0
	s.tenders[tender.ID] = &c
	return nil
}

// UpdateTender меняет переданные поля нетерминального тендера.
func (s *Store) UpdateTender(_ context.Context, tenderId string, update models.TenderUpdate, entry models.ActivityEntry) (*models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[tenderId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.Status.IsTerminal() {
		return nil, repository.ErrConflict
	}

	update.Apply(t)
	if update.Attachments != nil {
		t.Attachments = append([]string{}, *update.Attachments...)
	}
	t.UpdatedAt = entry.CreatedAt
	t.Activity = append(t.Activity, entry)
	c := cloneTender(t)
	return &c, nil
}

// UpdateTenderStatus меняет статус тендера, если он всё ещё равен from.
func (s *Store) UpdateTenderStatus(_ context.Context, tenderId string, from, to models.TenderStatus, entry models.ActivityEntry) (*models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[tenderId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.Status != from {
		return nil, repository.ErrConflict
	}

	t.Status = to
	t.UpdatedAt = entry.CreatedAt
	t.Activity = append(t.Activity, entry)
	c := cloneTender(t)
	return &c, nil
}

// ExtendDeadline переносит срок подачи предложений.
func (s *Store) ExtendDeadline(_ context.Context, tenderId string, from, to models.TenderStatus, deadline time.Time, entry models.ActivityEntry) (*models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[tenderId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.Status != from || !t.SubmissionDeadline.Before(deadline) {
		return nil, repository.ErrConflict
	}

	t.SubmissionDeadline = deadline
	t.Status = to
	t.UpdatedAt = entry.CreatedAt
	t.Activity = append(t.Activity, entry)
	c := cloneTender(t)
	return &c, nil
}

// AwardTender выбирает победителя и отклоняет остальные действующие предложения.
func (s *Store) AwardTender(_ context.Context, tenderId, bidId, actor string, at time.Time) (*models.Tender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenders[tenderId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !t.Status.Evaluable() {
		return nil, repository.ErrConflict
	}
	winner, ok := s.bids[bidId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if winner.TenderID != tenderId {
		return nil, repository.ErrBidMismatch
	}
	if !winner.Status.UnderConsideration() {
		return nil, repository.ErrConflict
	}

	winner.Status = models.AwardedBid
	winner.UpdatedAt = at
	winner.Activity = append(winner.Activity,
		models.NewActivity(models.ActionAwarded, "Bid selected as the winning bid", actor, at))

	for _, b := range s.bids {
		if b.TenderID != tenderId || b.ID == bidId {
			continue
		}
		switch b.Status {
		case models.WithdrawnBid, models.DraftBid, models.RejectedBid:
			continue
		}
		b.Status = models.RejectedBid
		b.UpdatedAt = at
		b.Activity = append(b.Activity,
			models.NewActivity(models.ActionRejected, "Tender awarded to another bid", actor, at))
	}

	awardedId := bidId
	t.Status = models.AwardedTender
	t.AwardedBidID = &awardedId
	t.AwardedTo = winner.VendorName
	t.UpdatedAt = at
	t.Activity = append(t.Activity,
		models.NewActivity(models.ActionAwarded, "Tender awarded to "+winner.VendorName, actor, at))
	c := cloneTender(t)
	return &c, nil
}

// DeleteTenders удаляет тендеры вместе с предложениями.
func (s *Store) DeleteTenders(_ context.Context, tenderIds []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.bids {
		if contains(tenderIds, b.TenderID) {
			delete(s.bids, id)
		}
	}
	var deleted int64
	for _, id := range tenderIds {
		if _, ok := s.tenders[id]; ok {
			delete(s.tenders, id)
			deleted++
		}
	}
	return deleted, nil
}

// NextTenderNumber возвращает следующий номер за год.
func (s *Store) NextTenderNumber(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.numbers[year]++
	return s.numbers[year], nil
}
