package presigned

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/auth"
	"github.com/abduss/bucketgate/internal/file"
	"github.com/abduss/bucketgate/internal/logger"
)

// BucketKeyHeader carries a bucket key when the Authorization header is taken.
const BucketKeyHeader = "X-Bucket-Key"

// Handler exposes key-authenticated file access.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public key routes. Callers pick the group prefix.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files", h.requestUpload)
	rg.GET("/files", h.listFiles)
	rg.GET("/files/:fileID", h.describeFile)
	rg.GET("/files/:fileID/download", h.requestDownload)
	rg.GET("/files/:fileID/content", h.streamContent)
	rg.DELETE("/files/:fileID", h.deleteFile)
}

type uploadRequest struct {
	Name         string         `json:"name" binding:"required,max=255"`
	OriginalName string         `json:"original_name" binding:"omitempty,max=255"`
	Type         string         `json:"type" binding:"required,max=255"`
	Size         *int64         `json:"size" binding:"required"`
	Metadata     map[string]any `json:"metadata"`
}

type listResponse struct {
	BucketID string      `json:"bucket_id"`
	Bucket   string      `json:"bucket"`
	Files    []file.File `json:"files"`
}

func (h *Handler) requestUpload(c *gin.Context) {
	key, ok := bucketKey(c)
	if !ok {
		return
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("%s", err.Error()))
		return
	}

	ticket, err := h.service.RequestUpload(c.Request.Context(), key, UploadRequest{
		Name:         req.Name,
		OriginalName: req.OriginalName,
		Type:         req.Type,
		Size:         *req.Size,
		Metadata:     req.Metadata,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

func (h *Handler) listFiles(c *gin.Context) {
	key, ok := bucketKey(c)
	if !ok {
		return
	}

	identity, files, err := h.service.ListFiles(c.Request.Context(), key)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if files == nil {
		files = []file.File{}
	}

	c.JSON(http.StatusOK, listResponse{BucketID: identity.ID.String(), Bucket: identity.Name, Files: files})
}

func (h *Handler) describeFile(c *gin.Context) {
	key, fileID, ok := keyAndFile(c)
	if !ok {
		return
	}

	f, err := h.service.DescribeFile(c.Request.Context(), key, fileID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) requestDownload(c *gin.Context) {
	key, fileID, ok := keyAndFile(c)
	if !ok {
		return
	}

	ticket, err := h.service.RequestDownload(c.Request.Context(), key, fileID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// streamContent copies the object to the client. Once the first byte is written the status is
// committed, so copy failures are logged and the connection is cut instead of answered.
func (h *Handler) streamContent(c *gin.Context) {
	key, fileID, ok := keyAndFile(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream, err := h.service.OpenStream(ctx, key, fileID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer stream.Body.Close()

	contentType := stream.Info.ContentType
	if contentType == "" {
		contentType = stream.File.Type
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := stream.Info.Size
	if size <= 0 {
		size = stream.File.Size
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stream.File.OriginalName))
	if stream.Info.ETag != "" {
		c.Header("ETag", `"`+stream.Info.ETag+`"`)
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, stream.Body); err != nil {
		logger.FromContext(ctx).Warn("content stream interrupted",
			zap.String("file_id", stream.File.ID.String()),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.Abort()
	}
}

func (h *Handler) deleteFile(c *gin.Context) {
	key, fileID, ok := keyAndFile(c)
	if !ok {
		return
	}

	if err := h.service.DeleteFile(c.Request.Context(), key, fileID); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bucketKey reads the key from X-Bucket-Key or a bearer Authorization header.
func bucketKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader(BucketKeyHeader))
	if key == "" {
		key = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if key == "" {
		apperr.Respond(c, apperr.Unauthorized("missing bucket key"))
		return "", false
	}
	return key, true
}

func keyAndFile(c *gin.Context) (string, uuid.UUID, bool) {
	key, ok := bucketKey(c)
	if !ok {
		return "", uuid.Nil, false
	}
	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		apperr.Respond(c, apperr.Validation("invalid file id"))
		return "", uuid.Nil, false
	}
	return key, fileID, true
}
