package domain

import (
	"context"
	"time"
)

type Book struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"index;size:36;not null" json:"userId"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Author        string    `gorm:"size:255;not null" json:"author"`
	ImageURL      string    `gorm:"size:512;not null" json:"imageUrl"`
	Year          int       `json:"year"`
	Genre         string    `gorm:"size:128" json:"genre"`
	Ratings       []Rating  `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"ratings"`
	AverageRating float64   `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Book) TableName() string { return "books" }

// Rating is one user's grade for one book. The composite unique index is what
// makes a rating append at-most-once per (book, user) regardless of how
// concurrent requests interleave.
type Rating struct {
	ID     uint    `gorm:"primaryKey" json:"-"`
	BookID string  `gorm:"size:36;not null;uniqueIndex:idx_ratings_book_user" json:"-"`
	UserID string  `gorm:"size:36;not null;uniqueIndex:idx_ratings_book_user" json:"userId"`
	Grade  float64 `gorm:"not null" json:"grade"`
}

func (Rating) TableName() string { return "ratings" }

// BookFields are the owner-editable columns. Updates replace all of them;
// ratings and the cached average are never touched by a field update.
type BookFields struct {
	Title  string
	Author string
	Year   int
	Genre  string
}

type BookRepository interface {
	Create(ctx context.Context, b *Book) error
	FindByID(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context, sortBy string, limit int) ([]Book, error)
	BestRated(ctx context.Context, limit int) ([]Book, error)
	UpdateFields(ctx context.Context, id string, f BookFields, imageURL string) error
	Delete(ctx context.Context, id string) error
	AddRating(ctx context.Context, bookID, userID string, grade float64) (*Book, error)
}
