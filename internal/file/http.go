package file

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/auth"
	"github.com/abduss/bucketgate/internal/bucket"
)

// ownedBuckets resolves a bucket on behalf of its owner.
type ownedBuckets interface {
	GetOwnedBucket(ctx context.Context, ownerID, id uuid.UUID) (bucket.Bucket, error)
}

// RegisterRoutes mounts owner file operations under the provided JWT-protected group.
func RegisterRoutes(group *gin.RouterGroup, service *Service, buckets ownedBuckets) {
	handler := &httpHandler{service: service, buckets: buckets}
	group.GET("/buckets/:bucketID/files", handler.listFiles)
	group.GET("/buckets/:bucketID/files/:fileID", handler.getFile)
	group.PATCH("/buckets/:bucketID/files/:fileID", handler.updateFile)
	group.DELETE("/buckets/:bucketID/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	service *Service
	buckets ownedBuckets
}

type updateFileRequest struct {
	Name     *string        `json:"name" binding:"omitempty,max=255"`
	Metadata map[string]any `json:"metadata"`
}

func (h *httpHandler) listFiles(c *gin.Context) {
	b, ok := h.ownedBucket(c)
	if !ok {
		return
	}

	list, err := h.service.GetFilesByBucketID(c.Request.Context(), b.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if list == nil {
		list = []File{}
	}

	c.JSON(http.StatusOK, gin.H{"files": list})
}

func (h *httpHandler) getFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *httpHandler) updateFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}

	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("%s", err.Error()))
		return
	}

	updated, err := h.service.UpdateFile(c.Request.Context(), f.ID, UpdateInput{Name: req.Name, Metadata: req.Metadata})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	f, ok := h.ownedFile(c)
	if !ok {
		return
	}

	if err := h.service.DeleteFile(c.Request.Context(), f.ID); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) ownedBucket(c *gin.Context) (bucket.Bucket, bool) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apperr.Respond(c, auth.ErrUnauthorized)
		return bucket.Bucket{}, false
	}

	bucketID, err := uuid.Parse(c.Param("bucketID"))
	if err != nil {
		apperr.Respond(c, apperr.Validation("invalid bucket id"))
		return bucket.Bucket{}, false
	}

	b, err := h.buckets.GetOwnedBucket(c.Request.Context(), userID, bucketID)
	if err != nil {
		apperr.Respond(c, err)
		return bucket.Bucket{}, false
	}
	return b, true
}

// ownedFile resolves :fileID within the owner's :bucketID. Files of other buckets are reported
// as not found.
func (h *httpHandler) ownedFile(c *gin.Context) (File, bool) {
	b, ok := h.ownedBucket(c)
	if !ok {
		return File{}, false
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		apperr.Respond(c, apperr.Validation("invalid file id"))
		return File{}, false
	}

	f, err := h.service.GetFileByID(c.Request.Context(), fileID)
	if err != nil {
		apperr.Respond(c, err)
		return File{}, false
	}
	if f == nil || f.BucketID != b.ID {
		apperr.Respond(c, ErrFileNotFound)
		return File{}, false
	}
	return *f, true
}
