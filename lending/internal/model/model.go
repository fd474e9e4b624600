package model

import (
	"time"
)

type Status string

const (
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusReturned   Status = "RETURNED"
)

type Book struct {
	ID              int        `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	ISBN            string     `json:"isbn" db:"isbn"`
	PublishedDate   *time.Time `json:"publishedDate,omitempty" db:"published_date"`
	TotalCopies     int        `json:"totalCopies" db:"total_copies"`
	CopiesAvailable int        `json:"copiesAvailable" db:"copies_available"`
}

type Loan struct {
	ID           int        `json:"-" db:"id"`
	LoanUid      string     `json:"loanUid" db:"loan_uid"`
	UserID       int        `json:"userId" db:"user_id"`
	BookID       int        `json:"bookId" db:"book_id"`
	CheckoutTime time.Time  `json:"checkoutTime" db:"checkout_time"`
	ReturnTime   *time.Time `json:"returnTime,omitempty" db:"return_time"`
	Status       Status     `json:"status" db:"status"`
}

type User struct {
	ID             int       `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	MembershipDate time.Time `json:"membershipDate" db:"membership_date"`
	IsActiveMember bool      `json:"isActiveMember" db:"is_active_member"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type ListLoans struct {
	Paging `json:",inline"`
	Items  []Loan `json:"items"`
}

// BookFilter narrows ListBooks. Available is a tri-state: nil means no
// availability constraint.
type BookFilter struct {
	Available *bool
	Title     string
	Author    string
	ISBN      string
}

type CreateBookRequest struct {
	Title         string     `json:"title" validate:"required"`
	Author        string     `json:"author" validate:"required"`
	ISBN          string     `json:"isbn" validate:"required,min=10,max=13"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	TotalCopies   int        `json:"totalCopies" validate:"required,gte=1"`
}

type LoanRequest struct {
	BookID int `json:"bookId" validate:"required,gte=1"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type AuthRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type EventType string

const (
	EventCheckout EventType = "CHECKOUT"
	EventReturn   EventType = "RETURN"
)

// LoanEvent is published to kafka after a committed checkout or return.
type LoanEvent struct {
	EventType EventType `json:"eventType"`
	LoanUid   string    `json:"loanUid"`
	UserID    int       `json:"userId"`
	BookID    int       `json:"bookId"`
	Timestamp time.Time `json:"timestamp"`
}
