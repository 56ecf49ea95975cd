package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/identity"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// Error codes carried in the envelope.
const (
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInvalidID         = "INVALID_ID"
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeDuplicateTag      = "DUPLICATE_TAG"
	CodeDuplicateUser     = "DUPLICATE_USER"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL_ERROR"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Meta    *listMeta `json:"meta,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type listMeta struct {
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// requestError is an error raised by the HTTP layer itself.
type requestError struct {
	status  int
	code    string
	message string
	details map[string]string
}

func (e *requestError) Error() string {
	return e.message
}

func missingParam(name string) error {
	return &requestError{
		status:  http.StatusBadRequest,
		code:    CodeMissingParameter,
		message: name + " is required",
		details: map[string]string{name: "is required"},
	}
}

func badRequest(field, msg string) error {
	return &requestError{
		status:  http.StatusBadRequest,
		code:    CodeValidation,
		message: "Validation failed",
		details: map[string]string{field: msg},
	}
}

func unauthorized(msg string) error {
	return &requestError{status: http.StatusUnauthorized, code: CodeUnauthorized, message: msg}
}

// classify maps an error onto its HTTP status and envelope body.
func classify(err error) (int, *apiError) {
	var reqErr *requestError
	var valErr *repository.ValidationError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, &apiError{Code: reqErr.code, Message: reqErr.message, Details: reqErr.details}
	case errors.As(err, &valErr):
		return http.StatusBadRequest, &apiError{Code: CodeValidation, Message: valErr.Message, Details: valErr.Details}
	case errors.Is(err, repository.ErrInvalidID):
		return http.StatusBadRequest, &apiError{Code: CodeInvalidID, Message: "Invalid ID format"}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, &apiError{Code: CodeNotFound, Message: notFoundMessage(err)}
	case errors.Is(err, repository.ErrDuplicateTag):
		return http.StatusConflict, &apiError{Code: CodeDuplicateTag, Message: repository.ErrDuplicateTag.Error()}
	case errors.Is(err, repository.ErrDuplicateUser):
		return http.StatusConflict, &apiError{Code: CodeDuplicateUser, Message: repository.ErrDuplicateUser.Error()}
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict, &apiError{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, repository.ErrInvalidTransition):
		return http.StatusConflict, &apiError{Code: CodeInvalidTransition, Message: err.Error()}
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, &apiError{Code: CodeForbidden, Message: "You may not modify this resource"}
	case errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrExpiredToken):
		return http.StatusUnauthorized, &apiError{Code: CodeUnauthorized, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &apiError{Code: CodeInternal, Message: err.Error()}
	}
}

func notFoundMessage(err error) string {
	var nf *repository.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return "Resource not found"
}

// respondError logs the error and writes the failure envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("route", c.FullPath()),
			slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected",
			slog.String("route", c.FullPath()),
			slog.String("code", body.Code),
			slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, envelope{Error: body})
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, status int, payload any) {
	c.JSON(status, envelope{Success: true, Data: payload})
}

// respondList writes one page of a listing with its paging metadata.
func respondList[T any](c *gin.Context, res repository.ListResult[T]) {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta: &listMeta{
			Total:      res.Total,
			Page:       res.Page,
			PageSize:   res.PageSize,
			TotalPages: res.TotalPages(),
		},
	})
}
