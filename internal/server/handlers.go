package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookly/review-service/internal/domain/consts"
	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	"github.com/azaliaz/bookly/review-service/internal/service"
)

// fail writes the status and message for a service error. Internal failures
// are already logged by the service and get a generic body.
func fail(ctx *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrConflict):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAuth):
		status = http.StatusUnauthorized
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

// bind decodes the body and runs struct validation on it.
func (s *Server) bind(ctx *gin.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Get().Debug().Err(err).Msg("unmarshal body failed")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrectly entered data"})
		return false
	}
	if err := s.valid.Struct(req); err != nil {
		logger.Get().Debug().Err(err).Msg("request validation failed")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrectly entered data"})
		return false
	}
	return true
}

func queryInt(ctx *gin.Context, def int, keys ...string) (int, bool) {
	for _, key := range keys {
		raw, ok := ctx.GetQuery(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return def, true
}

func (s *Server) Register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !s.bind(ctx, &req) {
		return
	}
	resp, err := s.Service.Register(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.Header("Authorization", "Bearer "+resp.Token)
	ctx.JSON(http.StatusCreated, resp)
}

func (s *Server) Login(ctx *gin.Context) {
	var req models.LoginRequest
	if !s.bind(ctx, &req) {
		return
	}
	resp, err := s.Service.Login(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.Header("Authorization", "Bearer "+resp.Token)
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) UserInfo(ctx *gin.Context) {
	user, err := s.Service.CurrentUser(ctx.Request.Context(), ctx.GetString("uid"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (s *Server) AddBook(ctx *gin.Context) {
	var req models.BookRequest
	if !s.bind(ctx, &req) {
		return
	}
	book, err := s.Service.CreateBook(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": "book added", "bookId": book.BID})
}

func (s *Server) AllBooks(ctx *gin.Context) {
	books, err := s.Service.ListBooks(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, books)
}

func (s *Server) BookInfo(ctx *gin.Context) {
	page, ok := queryInt(ctx, consts.DefaultPage, "page")
	if !ok {
		fail(ctx, service.ErrInvalidPage)
		return
	}
	limit, ok := queryInt(ctx, consts.DefaultPageSize, "limit", "pageSize")
	if !ok {
		fail(ctx, service.ErrInvalidPage)
		return
	}
	details, err := s.Service.BookDetails(ctx.Request.Context(), ctx.Param("id"), page, limit)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, details)
}

func (s *Server) AddReview(ctx *gin.Context) {
	var req models.ReviewRequest
	if !s.bind(ctx, &req) {
		return
	}
	review, err := s.Service.CreateReview(ctx.Request.Context(), ctx.Param("id"), ctx.GetString("uid"), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": "review added", "reviewId": review.ReviewID, "review": review})
}

func (s *Server) UpdateReview(ctx *gin.Context) {
	var req models.ReviewUpdateRequest
	if !s.bind(ctx, &req) {
		return
	}
	review, err := s.Service.UpdateReview(ctx.Request.Context(), ctx.Param("id"), ctx.GetString("uid"), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, review)
}

func (s *Server) RemoveReview(ctx *gin.Context) {
	if err := s.Service.DeleteReview(ctx.Request.Context(), ctx.Param("id"), ctx.GetString("uid")); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "review deleted"})
}
