package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"grimoire-api/internal/core/cache"
	"grimoire-api/internal/domain"
	"grimoire-api/internal/media/images"
	"grimoire-api/pkg/utils"
)

const (
	bestRatedLimit    = 3
	bestRatedCacheKey = "books:bestrated"
	bestRatedCacheTTL = 30 * time.Second
)

// ImageRemover is the slice of the image pipeline the book service needs:
// cleaning up files that are no longer referenced.
type ImageRemover interface {
	Delete(filename string) error
}

type BookServiceOptions struct {
	// Whether deleting a book also removes its cover file.
	DeleteImageOnDelete bool
}

type BookService struct {
	books   domain.BookRepository
	remover ImageRemover
	cache   *cache.Cache // optional, nil disables caching
	opts    BookServiceOptions
	log     *zap.Logger
}

func NewBookService(books domain.BookRepository, remover ImageRemover, c *cache.Cache, opts BookServiceOptions, log *zap.Logger) *BookService {
	return &BookService{books: books, remover: remover, cache: c, opts: opts, log: log}
}

// Create persists a new book owned by ownerID. The id is always generated
// server-side and ratings start empty; nothing client-supplied can set them.
// The image file referenced by imageURL must already be on disk.
func (s *BookService) Create(ctx context.Context, ownerID string, f domain.BookFields, imageURL string) (*domain.Book, error) {
	b := &domain.Book{
		ID:            utils.NewID(),
		UserID:        ownerID,
		Title:         f.Title,
		Author:        f.Author,
		Year:          f.Year,
		Genre:         f.Genre,
		ImageURL:      imageURL,
		Ratings:       []domain.Rating{},
		AverageRating: 0,
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return b, nil
}

func (s *BookService) Get(ctx context.Context, id string) (*domain.Book, error) {
	return s.books.FindByID(ctx, id)
}

func (s *BookService) List(ctx context.Context, sortBy string, limit int) ([]domain.Book, error) {
	return s.books.List(ctx, sortBy, limit)
}

func (s *BookService) BestRated(ctx context.Context) ([]domain.Book, error) {
	if s.cache == nil {
		return s.books.BestRated(ctx, bestRatedLimit)
	}
	out, err := cache.GetOrLoadJSON[[]domain.Book](s.cache, ctx, bestRatedCacheKey, bestRatedCacheTTL,
		func(ctx context.Context) (*[]domain.Book, error) {
			books, e := s.books.BestRated(ctx, bestRatedLimit)
			if e != nil {
				return nil, e
			}
			return &books, nil
		})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []domain.Book{}, nil
	}
	return *out, nil
}

// Update replaces the editable fields of a book the caller owns. When a new
// image was uploaded (newImageURL != ""), the old file is deleted only after
// the row referencing the new one is committed.
func (s *BookService) Update(ctx context.Context, id, callerID string, f domain.BookFields, newImageURL string) (*domain.Book, error) {
	b, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != callerID {
		return nil, domain.ErrForbidden
	}

	oldImageURL := b.ImageURL
	if err := s.books.UpdateFields(ctx, id, f, newImageURL); err != nil {
		return nil, err
	}

	if newImageURL != "" && oldImageURL != newImageURL {
		s.removeFile(oldImageURL)
	}
	s.invalidateListings(ctx)
	return s.books.FindByID(ctx, id)
}

// Delete removes a book the caller owns. Cover file cleanup is a deliberate
// configuration choice (the file is removed after the row, so a failed delete
// never orphans the row's reference).
func (s *BookService) Delete(ctx context.Context, id, callerID string) error {
	b, err := s.books.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if b.UserID != callerID {
		return domain.ErrForbidden
	}

	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	if s.opts.DeleteImageOnDelete {
		s.removeFile(b.ImageURL)
	}
	s.invalidateListings(ctx)
	return nil
}

// Rate validates the grade and appends the caller's rating. The repository
// guarantees the append is atomic and at-most-once per user.
func (s *BookService) Rate(ctx context.Context, bookID, userID string, grade float64) (*domain.Book, error) {
	if grade < 0 || grade > 5 {
		return nil, domain.ErrInvalidGrade
	}
	b, err := s.books.AddRating(ctx, bookID, userID, grade)
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return b, nil
}

func (s *BookService) removeFile(imageURL string) {
	name := images.FilenameFromURL(imageURL)
	if name == "" {
		return
	}
	if err := s.remover.Delete(name); err != nil {
		// The row no longer references the file; an orphaned file is
		// logged, never surfaced to the caller.
		s.log.Warn("failed to delete cover image", zap.String("filename", name), zap.Error(err))
	}
}

func (s *BookService) invalidateListings(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, bestRatedCacheKey)
	}
}
