package api

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davidahmann/counterpoint/internal/auth"
	"github.com/davidahmann/counterpoint/internal/dashboard"
	"github.com/davidahmann/counterpoint/internal/generation"
	"github.com/davidahmann/counterpoint/internal/policy"
)

// MaxImageBytes bounds uploads accepted by /v1/image.
const MaxImageBytes = 4 << 20

type Handler struct {
	Auth    auth.Authenticator
	Service *Service
}

type TextRequest struct {
	Text string `json:"text"`
}

type ModerateTextRequest struct {
	Text       string   `json:"text"`
	Blocklists []string `json:"blocklists"`
}

type ImageRequest struct {
	Name          string `json:"name"`
	ContentBase64 string `json:"content_base64"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SubmitText(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Service.SubmitText(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, ErrPersist) {
			c.JSON(http.StatusBadGateway, gin.H{"error": generation.UnexpectedErrorPrefix + err.Error(), "result": res})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ModerateText(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	var req ModerateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.Service.ModerateText(c.Request.Context(), req.Text, req.Blocklists)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ModerateImage accepts a multipart "file" field or a JSON body with base64 content.
func (h *Handler) ModerateImage(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	name, content, err := readImage(c)
	if errors.Is(err, errImageTooLarge) {
		writeError(c, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.Service.ModerateImage(c.Request.Context(), name, content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Sessions(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	records, err := h.Service.Sessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records})
}

func (h *Handler) DashboardJSON(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	summary, err := h.Service.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) DashboardPage(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	summary, err := h.Service.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := dashboard.Render(c.Writer, summary); err != nil {
		h.Service.logger().Error("dashboard render failed", zap.Error(err))
	}
}

// RequireAuth rejects requests the authenticator does not accept.
func (h *Handler) RequireAuth(c *gin.Context) {
	if h.Auth == nil {
		c.Next()
		return
	}
	if _, err := h.Auth.Authenticate(c.Request); err != nil {
		writeError(c, http.StatusUnauthorized, err.Error())
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handler) ensureService(c *gin.Context) bool {
	if h.Service == nil {
		writeError(c, http.StatusNotImplemented, "moderation service not configured")
		return false
	}
	return true
}

// fail maps service errors to status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	var collab *CollaboratorError
	switch {
	case errors.Is(err, ErrEmptyInput):
		writeError(c, http.StatusBadRequest, EmptyInputMessage)
	case errors.Is(err, policy.ErrInvalidArgument):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotConfigured):
		writeError(c, http.StatusNotImplemented, err.Error())
	case errors.As(err, &collab):
		writeError(c, http.StatusBadGateway, generation.UnexpectedErrorPrefix+collab.Err.Error())
	default:
		h.Service.logger().Error("request failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, generation.UnexpectedErrorPrefix+err.Error())
	}
}

// errImageTooLarge covers both an oversized body and an oversized decoded image.
var errImageTooLarge = errors.New("image too large")

// Request bodies may exceed MaxImageBytes by multipart framing or by base64
// expansion plus the JSON envelope.
const bodySlack = 64 << 10

func readImage(c *gin.Context) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageBytes+bodySlack)
		fh, err := c.FormFile("file")
		if err != nil {
			if isBodyTooLarge(err) {
				return "", nil, errImageTooLarge
			}
			return "", nil, errors.New("missing file")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
		if err != nil {
			return "", nil, err
		}
		if len(content) > MaxImageBytes {
			return "", nil, errImageTooLarge
		}
		return fh.Filename, content, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(base64.StdEncoding.EncodedLen(MaxImageBytes))+bodySlack)
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBodyTooLarge(err) {
			return "", nil, errImageTooLarge
		}
		return "", nil, errors.New("invalid json")
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		return "", nil, errors.New("content_base64 is not valid base64")
	}
	if len(content) > MaxImageBytes {
		return "", nil, errImageTooLarge
	}
	return req.Name, content, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
