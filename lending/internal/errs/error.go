package errs

import (
	"errors"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrNoCopiesAvailable = errors.New("no copies available for checkout")
	ErrAlreadyCheckedOut = errors.New("active checkout already exists for this book")
	ErrNoActiveCheckout  = errors.New("no active checkout for this user and book")
	ErrAlreadyReturned   = errors.New("loan already returned")

	ErrUserExists         = errors.New("username or email already registered")
	ErrBookExists         = errors.New("book with this isbn already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")

	// ErrTransient marks storage failures that aborted cleanly; the caller
	// may retry the whole operation.
	ErrTransient = errors.New("transient storage failure, try again")
)
