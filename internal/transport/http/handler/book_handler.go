package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"grimoire-api/internal/domain"
	"grimoire-api/internal/media/images"
	"grimoire-api/internal/service"
	mdw "grimoire-api/internal/transport/http/middleware"
	resp "grimoire-api/internal/transport/http/response"
)

type BookHandler struct {
	svc       *service.BookService
	proc      *images.Processor
	urlPrefix string
}

func NewBookHandler(svc *service.BookService, proc *images.Processor, urlPrefix string) *BookHandler {
	return &BookHandler{svc: svc, proc: proc, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// bookForm is the client-editable subset of a book. Ids, owner, ratings and
// the average are never read from the request.
type bookForm struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
}

func (f bookForm) fields() domain.BookFields {
	return domain.BookFields{
		Title:  strings.TrimSpace(f.Title),
		Author: strings.TrimSpace(f.Author),
		Year:   f.Year,
		Genre:  strings.TrimSpace(f.Genre),
	}
}

func (f bookForm) validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(f.Author) == "" {
		return fmt.Errorf("author is required")
	}
	return nil
}

func (h *BookHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	books, err := h.svc.List(c.Request.Context(), c.Query("sort"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, books)
}

func (h *BookHandler) BestRatings(c *gin.Context) {
	books, err := h.svc.BestRated(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, books)
}

func (h *BookHandler) Get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, b)
}

// Create expects multipart/form-data with a "book" JSON field and an "image"
// file. The image is fully written to disk before the book row is persisted;
// if persisting fails the fresh file is removed again.
func (h *BookHandler) Create(c *gin.Context) {
	form, fileErr := h.readBookForm(c, true)
	if fileErr != nil {
		resp.Fail(c, resp.CodeBadRequest, fileErr.Error())
		return
	}
	if err := form.book.validate(); err != nil {
		resp.Fail(c, resp.CodeBadRequest, err.Error())
		return
	}

	filename, err := h.proc.Process(form.imageData, form.imageType)
	if err != nil {
		fail(c, err)
		return
	}

	uid := c.GetString(mdw.KeyUserID)
	b, err := h.svc.Create(c.Request.Context(), uid, form.book.fields(), h.publicURL(c, filename))
	if err != nil {
		_ = h.proc.Storage().Delete(filename)
		fail(c, err)
		return
	}
	resp.Created(c, b)
}

// Update accepts either plain JSON (field update) or multipart with a new
// image. The service deletes the superseded file after the update commits.
func (h *BookHandler) Update(c *gin.Context) {
	id := c.Param("id")
	uid := c.GetString(mdw.KeyUserID)

	var form *parsedBookForm
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		f, err := h.readBookForm(c, false)
		if err != nil {
			resp.Fail(c, resp.CodeBadRequest, err.Error())
			return
		}
		form = f
	} else {
		var bf bookForm
		if err := c.ShouldBindJSON(&bf); err != nil {
			resp.Fail(c, resp.CodeBadRequest, err.Error())
			return
		}
		form = &parsedBookForm{book: bf}
	}
	if err := form.book.validate(); err != nil {
		resp.Fail(c, resp.CodeBadRequest, err.Error())
		return
	}

	newURL := ""
	newFile := ""
	if len(form.imageData) > 0 {
		filename, err := h.proc.Process(form.imageData, form.imageType)
		if err != nil {
			fail(c, err)
			return
		}
		newFile = filename
		newURL = h.publicURL(c, filename)
	}

	b, err := h.svc.Update(c.Request.Context(), id, uid, form.book.fields(), newURL)
	if err != nil {
		if newFile != "" {
			_ = h.proc.Storage().Delete(newFile)
		}
		fail(c, err)
		return
	}
	resp.OK(c, b)
}

func (h *BookHandler) Delete(c *gin.Context) {
	uid := c.GetString(mdw.KeyUserID)
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), uid); err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, gin.H{"message": "book deleted"})
}

type rateIn struct {
	Rating *float64 `json:"rating" binding:"required"`
}

func (h *BookHandler) Rate(c *gin.Context) {
	var in rateIn
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Fail(c, resp.CodeBadRequest, err.Error())
		return
	}
	uid := c.GetString(mdw.KeyUserID)
	b, err := h.svc.Rate(c.Request.Context(), c.Param("id"), uid, *in.Rating)
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, b)
}

type parsedBookForm struct {
	book      bookForm
	imageData []byte
	imageType string
}

// readBookForm parses the multipart "book" JSON field plus the optional
// "image" file. imageRequired distinguishes create from update.
func (h *BookHandler) readBookForm(c *gin.Context, imageRequired bool) (*parsedBookForm, error) {
	out := &parsedBookForm{}

	raw := c.PostForm("book")
	if raw == "" {
		return nil, fmt.Errorf("missing book field")
	}
	if err := json.Unmarshal([]byte(raw), &out.book); err != nil {
		return nil, fmt.Errorf("invalid book payload: %w", err)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if imageRequired {
			return nil, fmt.Errorf("image file is required")
		}
		return out, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	out.imageData = data
	out.imageType = fh.Header.Get("Content-Type")
	return out, nil
}

// publicURL derives the image URL from the request's own host, the way the
// frontend expects to read it back.
func (h *BookHandler) publicURL(c *gin.Context, filename string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s/%s", scheme, c.Request.Host, h.urlPrefix, filename)
}
