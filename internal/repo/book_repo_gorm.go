package repo

import (
	"context"
	"errors"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grimoire-api/internal/domain"
)

type BookRepo struct{ db *gorm.DB }

func NewBookRepo(db *gorm.DB) *BookRepo { return &BookRepo{db: db} }

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookRepo) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	var b domain.Book
	err := r.db.WithContext(ctx).Preload("Ratings").First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// sortColumns whitelists client-supplied sort keys so they never reach the
// query as raw SQL.
var sortColumns = map[string]string{
	"averageRating": "average_rating",
	"year":          "year",
	"title":         "title",
	"createdAt":     "created_at",
}

func (r *BookRepo) List(ctx context.Context, sortBy string, limit int) ([]domain.Book, error) {
	q := r.db.WithContext(ctx).Model(&domain.Book{}).Preload("Ratings")
	if col, ok := sortColumns[sortBy]; ok {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: true}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	} else {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var books []domain.Book
	if err := q.Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// BestRated orders by the cached average, ties broken by id so repeated calls
// return the same sequence.
func (r *BookRepo) BestRated(ctx context.Context, limit int) ([]domain.Book, error) {
	if limit <= 0 {
		limit = 3
	}
	var books []domain.Book
	err := r.db.WithContext(ctx).Model(&domain.Book{}).Preload("Ratings").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "average_rating"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

// UpdateFields replaces the owner-editable columns and nothing else, so
// ratings and the cached average survive a field update untouched.
func (r *BookRepo) UpdateFields(ctx context.Context, id string, f domain.BookFields, imageURL string) error {
	cols := map[string]any{
		"title":  f.Title,
		"author": f.Author,
		"year":   f.Year,
		"genre":  f.Genre,
	}
	if imageURL != "" {
		cols["image_url"] = imageURL
	}
	res := r.db.WithContext(ctx).Model(&domain.Book{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *BookRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&domain.Rating{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Book{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// AddRating appends one rating and recomputes the cached average in a single
// transaction. The unique (book_id, user_id) index makes the append itself
// at-most-once at the store level, so two concurrent raters can never lose an
// update: the second insert by the same user fails, and inserts by different
// users both land. The book row is locked for the recompute where the driver
// supports it; sqlite serializes writers on its own.
func (r *BookRepo) AddRating(ctx context.Context, bookID, userID string, grade float64) (*domain.Book, error) {
	var out *domain.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var b domain.Book
		if err := q.First(&b, "id = ?", bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		rating := domain.Rating{BookID: bookID, UserID: userID, Grade: grade}
		if err := tx.Create(&rating).Error; err != nil {
			if IsDupKey(err) {
				return domain.ErrAlreadyRated
			}
			return err
		}

		var agg struct {
			Sum float64
			N   int64
		}
		if err := tx.Model(&domain.Rating{}).
			Where("book_id = ?", bookID).
			Select("COALESCE(SUM(grade), 0) AS sum, COUNT(*) AS n").
			Scan(&agg).Error; err != nil {
			return err
		}
		avg := 0.0
		if agg.N > 0 {
			avg = math.Round(agg.Sum/float64(agg.N)*10) / 10
		}
		if err := tx.Model(&domain.Book{}).Where("id = ?", bookID).
			Update("average_rating", avg).Error; err != nil {
			return err
		}

		var fresh domain.Book
		if err := tx.Preload("Ratings").First(&fresh, "id = ?", bookID).Error; err != nil {
			return err
		}
		out = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsDupKey matches unique-constraint violations across the supported drivers
// without depending on driver-specific error types.
func IsDupKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
