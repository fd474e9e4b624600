package handler

import (
	"context"

	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/lending/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	Checkout(ctx context.Context, userID, bookID int) (model.Loan, error)
	Return(ctx context.Context, userID, bookID int) (model.Loan, error)
	ListLoans(ctx context.Context, userID, page, size int) (model.ListLoans, error)

	GetBook(ctx context.Context, bookID int) (model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter, page, size int) (model.ListBooks, error)

	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	Authorize(ctx context.Context, req model.AuthRequest) (string, error)
}

var _ LendingService = (*service.Service)(nil)
