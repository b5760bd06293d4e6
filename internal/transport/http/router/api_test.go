package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grimoire-api/internal/core/auth"
	"grimoire-api/internal/core/config"
	"grimoire-api/internal/domain"
	"grimoire-api/internal/media/images"
	"grimoire-api/internal/repo"
	"grimoire-api/internal/service"
	"grimoire-api/internal/transport/http/handler"
)

func init() { gin.SetMode(gin.TestMode) }

type apiFixture struct {
	engine *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Book{}, &domain.Rating{}))

	log := zap.NewNop()
	jwter := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "grimoire-api", TTL: 24 * time.Hour}

	storage, err := images.NewStorage(t.TempDir())
	require.NoError(t, err)
	proc := images.NewProcessor(storage, images.Options{MaxBytes: 10 << 20}, log)

	authSvc := service.NewAuthService(repo.NewUserRepo(db), jwter, log)
	bookSvc := service.NewBookService(repo.NewBookRepo(db), storage, nil,
		service.BookServiceOptions{DeleteImageOnDelete: true}, log)

	cfg := &config.Config{
		App: config.App{HTTP: config.HTTP{Host: "127.0.0.1", Port: 0}},
		Media: config.Media{
			Dir: "", URLPrefix: "/images", MaxUploadMB: 10,
		},
		RateLimit: config.RateLimit{
			GlobalRPS: 10000, GlobalBurst: 10000,
			LoginRPS: 10000, LoginBurst: 10000,
			MaxInflight: 100,
		},
	}

	engine := NewAPIEngine(Deps{
		Log:     log,
		Cfg:     cfg,
		JWTer:   jwter,
		Auth:    handler.NewAuthHandler(authSvc),
		Books:   handler.NewBookHandler(bookSvc, proc, cfg.Media.URLPrefix),
		MediaFS: t.TempDir(),
	})
	return &apiFixture{engine: engine}
}

func (f *apiFixture) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) signupAndLogin(t *testing.T, email string) (userID, token string) {
	t.Helper()
	w := f.doJSON(http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "Str0ng!pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "Str0ng!pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Data struct {
			UserID string `json:"userId"`
			Token  string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Data.Token)
	return out.Data.UserID, out.Data.Token
}

func pngUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for x := 0; x < 40; x++ {
		for y := 0; y < 60; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartBook builds the multipart body the frontend sends: a "book" JSON
// field plus an "image" file part with a proper content type.
func multipartBook(t *testing.T, bookJSON string, imageData []byte, imageType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	require.NoError(t, w.WriteField("book", bookJSON))

	if imageData != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="cover.png"`)
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (f *apiFixture) createBook(t *testing.T, token string) string {
	t.Helper()
	body, ctype := multipartBook(t, `{"title":"Grimoire","author":"Anon","year":1532,"genre":"occult"}`, pngUpload(t), "image/png")
	req := httptest.NewRequest(http.MethodPost, "/api/books", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Data domain.Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Data.ID)
	return out.Data.ID
}

func TestAuthRoutes(t *testing.T) {
	t.Run("signup rejects a weak password", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.doJSON(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "a@b.com", "password": "weak"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		f := newAPIFixture(t)
		f.signupAndLogin(t, "a@b.com")
		w := f.doJSON(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "a@b.com", "password": "Str0ng!pass"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login with bad credentials is 401", func(t *testing.T) {
		f := newAPIFixture(t)
		f.signupAndLogin(t, "a@b.com")
		w := f.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@b.com", "password": "Wr0ng!pass"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBookRoutes(t *testing.T) {
	t.Run("create requires a token", func(t *testing.T) {
		f := newAPIFixture(t)
		body, ctype := multipartBook(t, `{"title":"T","author":"A"}`, pngUpload(t), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/api/books", body)
		req.Header.Set("Content-Type", ctype)
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("create then read back", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.signupAndLogin(t, "a@b.com")
		id := f.createBook(t, token)

		w := f.doJSON(http.MethodGet, "/api/books/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out struct {
			Data domain.Book `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "Grimoire", out.Data.Title)
		assert.True(t, strings.Contains(out.Data.ImageURL, "/images/book-"), out.Data.ImageURL)
		assert.Empty(t, out.Data.Ratings)

		w = f.doJSON(http.MethodGet, "/api/books", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown book is 404", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.doJSON(http.MethodGet, "/api/books/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("create with a disallowed image type is 415", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.signupAndLogin(t, "a@b.com")

		body, ctype := multipartBook(t, `{"title":"T","author":"A"}`, pngUpload(t), "image/gif")
		req := httptest.NewRequest(http.MethodPost, "/api/books", body)
		req.Header.Set("Content-Type", ctype)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("non-owner update is 403", func(t *testing.T) {
		f := newAPIFixture(t)
		_, ownerTok := f.signupAndLogin(t, "owner@b.com")
		_, otherTok := f.signupAndLogin(t, "other@b.com")
		id := f.createBook(t, ownerTok)

		w := f.doJSON(http.MethodPut, "/api/books/"+id, otherTok,
			gin.H{"title": "Stolen", "author": "Me", "year": 2020, "genre": "crime"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner json update keeps the image url", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.signupAndLogin(t, "a@b.com")
		id := f.createBook(t, token)

		w := f.doJSON(http.MethodPut, "/api/books/"+id, token,
			gin.H{"title": "Grimoire II", "author": "Anon", "year": 1600, "genre": "occult"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var out struct {
			Data domain.Book `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "Grimoire II", out.Data.Title)
		assert.Contains(t, out.Data.ImageURL, "/images/book-")
	})

	t.Run("owner delete is 200, second delete 404", func(t *testing.T) {
		f := newAPIFixture(t)
		_, token := f.signupAndLogin(t, "a@b.com")
		id := f.createBook(t, token)

		w := f.doJSON(http.MethodDelete, "/api/books/"+id, token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = f.doJSON(http.MethodDelete, "/api/books/"+id, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRatingRoutes(t *testing.T) {
	t.Run("full rating flow", func(t *testing.T) {
		f := newAPIFixture(t)
		_, ownerTok := f.signupAndLogin(t, "owner@b.com")
		id := f.createBook(t, ownerTok)

		_, readerTok := f.signupAndLogin(t, "reader@b.com")

		// no token
		w := f.doJSON(http.MethodPost, "/api/books/"+id+"/rating", "", gin.H{"rating": 4})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// out of range
		w = f.doJSON(http.MethodPost, "/api/books/"+id+"/rating", readerTok, gin.H{"rating": 6})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// first rating lands
		w = f.doJSON(http.MethodPost, "/api/books/"+id+"/rating", readerTok, gin.H{"rating": 4})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var out struct {
			Data domain.Book `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.InDelta(t, 4.0, out.Data.AverageRating, 1e-9)
		assert.Len(t, out.Data.Ratings, 1)

		// second rating by the same reader conflicts
		w = f.doJSON(http.MethodPost, "/api/books/"+id+"/rating", readerTok, gin.H{"rating": 5})
		assert.Equal(t, http.StatusConflict, w.Code)

		// unknown book
		w = f.doJSON(http.MethodPost, "/api/books/nope/rating", readerTok, gin.H{"rating": 4})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bestratings returns the top three", func(t *testing.T) {
		f := newAPIFixture(t)
		_, ownerTok := f.signupAndLogin(t, "owner@b.com")

		ids := make([]string, 4)
		for i := range ids {
			ids[i] = f.createBook(t, ownerTok)
		}
		for i, grade := range []float64{5, 4, 3, 1} {
			_, readerTok := f.signupAndLogin(t, fmt.Sprintf("reader%d@b.com", i))
			w := f.doJSON(http.MethodPost, "/api/books/"+ids[i]+"/rating", readerTok, gin.H{"rating": grade})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}

		w := f.doJSON(http.MethodGet, "/api/books/bestratings", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out struct {
			Data []domain.Book `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out.Data, 3)
		assert.InDelta(t, 5.0, out.Data[0].AverageRating, 1e-9)
		assert.InDelta(t, 4.0, out.Data[1].AverageRating, 1e-9)
		assert.InDelta(t, 3.0, out.Data[2].AverageRating, 1e-9)
	})
}
