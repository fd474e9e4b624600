package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
)

// CheckoutLoan runs the whole checkout decision in one transaction. The book
// row is locked FOR UPDATE first, so the availability read, the active-loan
// check and both writes cannot interleave with a concurrent checkout or
// return of the same book.
func (r *repository) CheckoutLoan(ctx context.Context, userID, bookID int) (model.Loan, error) {
	var loan model.Loan
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var book model.Book
		q := `select id, total_copies, copies_available from books where id = $1 for update`
		if err := tx.GetContext(ctx, &book, q, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrBookNotFound
			}
			return err
		}
		if book.CopiesAvailable <= 0 {
			return errs.ErrNoCopiesAvailable
		}

		var active bool
		q = `select exists(select 1 from loans where user_id = $1 and book_id = $2 and return_time is null)`
		if err := tx.GetContext(ctx, &active, q, userID, bookID); err != nil {
			return err
		}
		if active {
			return errs.ErrAlreadyCheckedOut
		}

		q = `update books set copies_available = copies_available - 1 where id = $1`
		if _, err := tx.ExecContext(ctx, q, bookID); err != nil {
			return err
		}

		q = `insert into loans (loan_uid, user_id, book_id, status)
			values ($1, $2, $3, $4) returning *`
		if err := tx.GetContext(ctx, &loan, q, uuid.New().String(), userID, bookID, model.StatusCheckedOut); err != nil {
			// partial unique index is the backstop if the in-tx check raced
			if isUniqueViolation(err) {
				return errs.ErrAlreadyCheckedOut
			}
			r.log.Error("CheckoutLoan insert", zap.Int("userID", userID), zap.Int("bookID", bookID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// ReturnLoan mirrors CheckoutLoan with the same lock order: book row first,
// then the loan row, so concurrent checkout and return of one book serialize.
func (r *repository) ReturnLoan(ctx context.Context, userID, bookID int) (model.Loan, error) {
	var loan model.Loan
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int
		q := `select id from books where id = $1 for update`
		if err := tx.GetContext(ctx, &id, q, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNoActiveCheckout
			}
			return err
		}

		q = `update loans
			set status = $1, return_time = now()
			where user_id = $2 and book_id = $3 and return_time is null
			returning *`
		if err := tx.GetContext(ctx, &loan, q, model.StatusReturned, userID, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.noActiveErr(ctx, tx, userID, bookID)
			}
			return err
		}

		q = `update books set copies_available = copies_available + 1 where id = $1`
		if _, err := tx.ExecContext(ctx, q, bookID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// noActiveErr distinguishes a loan that was already returned from one that
// never existed. Both are conflicts; the message differs.
func (r *repository) noActiveErr(ctx context.Context, tx *sqlx.Tx, userID, bookID int) error {
	var returned bool
	q := `select exists(select 1 from loans where user_id = $1 and book_id = $2 and return_time is not null)`
	if err := tx.GetContext(ctx, &returned, q, userID, bookID); err != nil {
		return errs.ErrNoActiveCheckout
	}
	if returned {
		return errs.ErrAlreadyReturned
	}
	return errs.ErrNoActiveCheckout
}

func (r *repository) FindActiveLoan(ctx context.Context, userID, bookID int) (model.Loan, error) {
	query, args, err := qb.Select("id", "loan_uid", "user_id", "book_id", "checkout_time", "return_time", "status").
		From(loansTableName).
		Where(sq.Eq{"user_id": userID, "book_id": bookID}).
		Where("return_time is null").
		Limit(1).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	var loan model.Loan
	if err := r.db.GetContext(ctx, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNoActiveCheckout
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoansByUser(ctx context.Context, userID, page, size int) (model.ListLoans, error) {
	q := qb.Select("id", "loan_uid", "user_id", "book_id", "checkout_time", "return_time", "status").
		From(loansTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("checkout_time desc")

	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListLoans{}, err
	}

	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return model.ListLoans{}, err
	}

	return model.ListLoans{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(loans),
		},
		Items: loans,
	}, nil
}
