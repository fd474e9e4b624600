package service

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/lending/internal/repository"
	"github.com/bookhive/lending-service/pkg/kafka"
	"github.com/bookhive/lending-service/pkg/keylock"
)

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	locks    keylock.KeyLock
	producer sarama.SyncProducer
}

func NewService(repo repository.Repository, producer sarama.SyncProducer, log *zap.Logger) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		locks:    keylock.New(),
		producer: producer,
	}
}

// Checkout serializes against every other checkout/return of the same book:
// the per-book lock covers the (user, book) pair as well, since the pair key
// includes the book. The repository transaction provides the same guarantee
// at the storage layer.
func (s *Service) Checkout(ctx context.Context, userID, bookID int) (model.Loan, error) {
	s.locks.Lock(bookID)
	defer s.locks.Unlock(bookID)

	loan, err := s.repo.CheckoutLoan(ctx, userID, bookID)
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(model.EventCheckout, loan)
	return loan, nil
}

func (s *Service) Return(ctx context.Context, userID, bookID int) (model.Loan, error) {
	s.locks.Lock(bookID)
	defer s.locks.Unlock(bookID)

	loan, err := s.repo.ReturnLoan(ctx, userID, bookID)
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(model.EventReturn, loan)
	return loan, nil
}

// publish is fire-and-forget after commit: a broker failure never rolls back
// a committed loan.
func (s *Service) publish(eventType model.EventType, loan model.Loan) {
	if s.producer == nil {
		return
	}
	event := model.LoanEvent{
		EventType: eventType,
		LoanUid:   loan.LoanUid,
		UserID:    loan.UserID,
		BookID:    loan.BookID,
		Timestamp: time.Now().UTC(),
	}
	if err := kafka.Publish(s.producer, kafka.LendingTopic, event); err != nil {
		s.log.Warn("publish loan event", zap.String("loanUid", loan.LoanUid), zap.Error(err))
	}
}

func (s *Service) GetBook(ctx context.Context, bookID int) (model.Book, error) {
	return s.repo.GetBook(ctx, bookID)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter, page, size int) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, filter, page, size)
}

func (s *Service) ListLoans(ctx context.Context, userID, page, size int) (model.ListLoans, error) {
	return s.repo.ListLoansByUser(ctx, userID, page, size)
}
