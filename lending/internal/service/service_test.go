package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/lending/internal/service"
)

// fakeRepo is a deliberately non-atomic in-memory store: each operation reads,
// yields the scheduler, then writes. Only the engine's per-book lock keeps the
// composite read-then-write sequence serialized, which is exactly what these
// tests exercise.
type fakeRepo struct {
	books map[int]*model.Book
	loans []*model.Loan
	users map[string]model.User
}

func newFakeRepo(books ...model.Book) *fakeRepo {
	r := &fakeRepo{books: make(map[int]*model.Book), users: make(map[string]model.User)}
	for i := range books {
		b := books[i]
		r.books[b.ID] = &b
	}
	return r
}

func (r *fakeRepo) CheckoutLoan(_ context.Context, userID, bookID int) (model.Loan, error) {
	book, ok := r.books[bookID]
	if !ok {
		return model.Loan{}, errs.ErrBookNotFound
	}
	available := book.CopiesAvailable
	time.Sleep(time.Microsecond) // widen the read-then-write window
	if available <= 0 {
		return model.Loan{}, errs.ErrNoCopiesAvailable
	}
	for _, l := range r.loans {
		if l.UserID == userID && l.BookID == bookID && l.ReturnTime == nil {
			return model.Loan{}, errs.ErrAlreadyCheckedOut
		}
	}
	book.CopiesAvailable = available - 1
	loan := &model.Loan{
		ID:           len(r.loans) + 1,
		LoanUid:      uuid.New().String(),
		UserID:       userID,
		BookID:       bookID,
		CheckoutTime: time.Now(),
		Status:       model.StatusCheckedOut,
	}
	r.loans = append(r.loans, loan)
	return *loan, nil
}

func (r *fakeRepo) ReturnLoan(_ context.Context, userID, bookID int) (model.Loan, error) {
	book, ok := r.books[bookID]
	if !ok {
		return model.Loan{}, errs.ErrNoActiveCheckout
	}
	var returned bool
	for _, l := range r.loans {
		if l.UserID != userID || l.BookID != bookID {
			continue
		}
		if l.ReturnTime == nil {
			now := time.Now()
			l.ReturnTime = &now
			l.Status = model.StatusReturned
			book.CopiesAvailable++
			return *l, nil
		}
		returned = true
	}
	if returned {
		return model.Loan{}, errs.ErrAlreadyReturned
	}
	return model.Loan{}, errs.ErrNoActiveCheckout
}

func (r *fakeRepo) FindActiveLoan(_ context.Context, userID, bookID int) (model.Loan, error) {
	for _, l := range r.loans {
		if l.UserID == userID && l.BookID == bookID && l.ReturnTime == nil {
			return *l, nil
		}
	}
	return model.Loan{}, errs.ErrNoActiveCheckout
}

func (r *fakeRepo) ListLoansByUser(_ context.Context, userID, page, size int) (model.ListLoans, error) {
	var items []model.Loan
	for i := len(r.loans) - 1; i >= 0; i-- {
		if r.loans[i].UserID == userID {
			items = append(items, *r.loans[i])
		}
	}
	return model.ListLoans{
		Paging: model.Paging{Page: page, PageSize: size, TotalElements: len(items)},
		Items:  items,
	}, nil
}

func (r *fakeRepo) GetBook(_ context.Context, bookID int) (model.Book, error) {
	book, ok := r.books[bookID]
	if !ok {
		return model.Book{}, errs.ErrBookNotFound
	}
	return *book, nil
}

func (r *fakeRepo) CreateBook(_ context.Context, req model.CreateBookRequest) (model.Book, error) {
	book := &model.Book{
		ID:              len(r.books) + 1,
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		PublishedDate:   req.PublishedDate,
		TotalCopies:     req.TotalCopies,
		CopiesAvailable: req.TotalCopies,
	}
	r.books[book.ID] = book
	return *book, nil
}

func (r *fakeRepo) ListBooks(_ context.Context, _ model.BookFilter, page, size int) (model.ListBooks, error) {
	var items []model.Book
	for _, b := range r.books {
		items = append(items, *b)
	}
	return model.ListBooks{
		Paging: model.Paging{Page: page, PageSize: size, TotalElements: len(items)},
		Items:  items,
	}, nil
}

func (r *fakeRepo) CreateUser(_ context.Context, username, email, passwordHash string) (model.User, error) {
	if _, ok := r.users[username]; ok {
		return model.User{}, errs.ErrUserExists
	}
	user := model.User{
		ID:             len(r.users) + 1,
		Username:       username,
		Email:          email,
		PasswordHash:   passwordHash,
		MembershipDate: time.Now(),
		IsActiveMember: true,
	}
	r.users[username] = user
	return user, nil
}

func (r *fakeRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	user, ok := r.users[username]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return user, nil
}

func newService(repo *fakeRepo) *service.Service {
	return service.NewService(repo, nil, zap.NewExample().Named("test"))
}

func (r *fakeRepo) activeLoans(bookID int) int {
	var n int
	for _, l := range r.loans {
		if l.BookID == bookID && l.ReturnTime == nil {
			n++
		}
	}
	return n
}

func TestService_LastCopyConcurrentCheckout(t *testing.T) {
	t.Parallel()
	const workers = 32
	repo := newFakeRepo(model.Book{ID: 1, Title: "t", Author: "a", ISBN: "1234567890", TotalCopies: 1, CopiesAvailable: 1})
	svc := newService(repo)

	results := make([]error, workers)
	var gg errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		gg.Go(func() error {
			_, err := svc.Checkout(context.Background(), i+1, 1)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, gg.Wait())

	var success, noCopies int
	for _, err := range results {
		switch {
		case err == nil:
			success++
		case err == errs.ErrNoCopiesAvailable:
			noCopies++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, success)
	require.Equal(t, workers-1, noCopies)
	require.Equal(t, 0, repo.books[1].CopiesAvailable)
	require.Equal(t, 1, repo.activeLoans(1))
}

func TestService_ConcurrentCheckoutBounded(t *testing.T) {
	t.Parallel()
	const (
		workers = 40
		copies  = 7
	)
	repo := newFakeRepo(model.Book{ID: 1, Title: "t", Author: "a", ISBN: "1234567890", TotalCopies: copies, CopiesAvailable: copies})
	svc := newService(repo)

	results := make([]error, workers)
	var gg errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		gg.Go(func() error {
			_, err := svc.Checkout(context.Background(), i+1, 1)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, gg.Wait())

	var success int
	for _, err := range results {
		if err == nil {
			success++
		}
	}
	require.Equal(t, copies, success)
	require.Equal(t, 0, repo.books[1].CopiesAvailable)
	require.Equal(t, copies, repo.activeLoans(1))
	// copies_available == total_copies - active loans
	require.Equal(t, repo.books[1].TotalCopies-repo.activeLoans(1), repo.books[1].CopiesAvailable)
}

func TestService_ConcurrentReturnAndCheckout(t *testing.T) {
	t.Parallel()
	const pairs = 20
	repo := newFakeRepo(model.Book{ID: 1, Title: "t", Author: "a", ISBN: "1234567890", TotalCopies: pairs, CopiesAvailable: pairs})
	svc := newService(repo)

	for i := 0; i < pairs; i++ {
		_, err := svc.Checkout(context.Background(), i+1, 1)
		require.NoError(t, err)
	}
	require.Equal(t, 0, repo.books[1].CopiesAvailable)

	// every user returns while a fresh user checks out the freed copy
	var gg errgroup.Group
	for i := 0; i < pairs; i++ {
		i := i
		gg.Go(func() error {
			if _, err := svc.Return(context.Background(), i+1, 1); err != nil {
				return err
			}
			return nil
		})
		gg.Go(func() error {
			for {
				_, err := svc.Checkout(context.Background(), pairs+i+1, 1)
				if err == nil {
					return nil
				}
				if err != errs.ErrNoCopiesAvailable {
					return err
				}
				time.Sleep(time.Millisecond)
			}
		})
	}
	require.NoError(t, gg.Wait())

	require.Equal(t, 0, repo.books[1].CopiesAvailable)
	require.Equal(t, pairs, repo.activeLoans(1))
	require.Equal(t, repo.books[1].TotalCopies-repo.activeLoans(1), repo.books[1].CopiesAvailable)
}

func TestService_CheckoutReturnRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo(model.Book{ID: 1, Title: "Django for Pros", Author: "A Author", ISBN: "1234567890123", TotalCopies: 2, CopiesAvailable: 2})
	svc := newService(repo)
	ctx := context.Background()
	const alice = 1

	loan, err := svc.Checkout(ctx, alice, 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusCheckedOut, loan.Status)
	require.Nil(t, loan.ReturnTime)
	require.Equal(t, 1, repo.books[1].CopiesAvailable)

	_, err = svc.Checkout(ctx, alice, 1)
	require.ErrorIs(t, err, errs.ErrAlreadyCheckedOut)
	require.Equal(t, 1, repo.books[1].CopiesAvailable)

	returned, err := svc.Return(ctx, alice, 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnTime)
	require.Equal(t, 2, repo.books[1].CopiesAvailable)

	// terminal state: a second return is rejected
	_, err = svc.Return(ctx, alice, 1)
	require.ErrorIs(t, err, errs.ErrAlreadyReturned)

	_, err = svc.Checkout(ctx, alice, 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.books[1].CopiesAvailable)
}

func TestService_CheckoutNoCopies(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo(model.Book{ID: 1, Title: "t", Author: "a", ISBN: "1234567890", TotalCopies: 1, CopiesAvailable: 0})
	svc := newService(repo)

	_, err := svc.Checkout(context.Background(), 1, 1)
	require.ErrorIs(t, err, errs.ErrNoCopiesAvailable)
	require.Equal(t, 0, repo.books[1].CopiesAvailable)
	require.Empty(t, repo.loans)
}

func TestService_ReturnWithoutCheckout(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo(model.Book{ID: 1, Title: "t", Author: "a", ISBN: "1234567890", TotalCopies: 1, CopiesAvailable: 1})
	svc := newService(repo)
	const bob = 2

	_, err := svc.Return(context.Background(), bob, 1)
	require.ErrorIs(t, err, errs.ErrNoActiveCheckout)
	require.Equal(t, 1, repo.books[1].CopiesAvailable)
	require.Empty(t, repo.loans)
}

func TestService_CheckoutBookNotFound(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.Checkout(context.Background(), 1, 404)
	require.ErrorIs(t, err, errs.ErrBookNotFound)
}

func TestService_ListLoansNewestFirst(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo(
		model.Book{ID: 1, Title: "t1", Author: "a", ISBN: "1111111111", TotalCopies: 1, CopiesAvailable: 1},
		model.Book{ID: 2, Title: "t2", Author: "a", ISBN: "2222222222", TotalCopies: 1, CopiesAvailable: 1},
	)
	svc := newService(repo)
	ctx := context.Background()
	const alice = 1

	_, err := svc.Checkout(ctx, alice, 1)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, alice, 2)
	require.NoError(t, err)

	loans, err := svc.ListLoans(ctx, alice, 0, 0)
	require.NoError(t, err)
	require.Len(t, loans.Items, 2)
	require.Equal(t, 2, loans.Items[0].BookID)
	require.Equal(t, 1, loans.Items[1].BookID)
}
