package bucket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/auth"
)

// RegisterRoutes mounts the owner bucket endpoints onto a JWT-protected group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/buckets", handler.createBucket)
	group.GET("/buckets", handler.listBuckets)
	group.GET("/buckets/:bucketID", handler.getBucket)
	group.PATCH("/buckets/:bucketID", handler.updateBucket)
	group.DELETE("/buckets/:bucketID", handler.deleteBucket)
	group.GET("/buckets/:bucketID/stats", handler.getStats)
	group.POST("/buckets/:bucketID/reconcile", handler.reconcile)
}

type httpHandler struct {
	service *Service
}

type createBucketRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

type updateBucketRequest struct {
	Name *string `json:"name" binding:"omitempty,max=128"`
}

func (h *httpHandler) createBucket(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apperr.Respond(c, auth.ErrUnauthorized)
		return
	}

	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("%s", err.Error()))
		return
	}

	bucket, err := h.service.CreateBucket(c.Request.Context(), req.Name, userID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, bucket)
}

func (h *httpHandler) listBuckets(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apperr.Respond(c, auth.ErrUnauthorized)
		return
	}

	buckets, err := h.service.GetBucketsByOwnerID(c.Request.Context(), userID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if buckets == nil {
		buckets = []Bucket{}
	}

	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (h *httpHandler) getBucket(c *gin.Context) {
	bucket, ok := h.ownedBucket(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bucket)
}

func (h *httpHandler) updateBucket(c *gin.Context) {
	bucket, ok := h.ownedBucket(c)
	if !ok {
		return
	}

	var req updateBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("%s", err.Error()))
		return
	}

	updated, err := h.service.UpdateBucket(c.Request.Context(), bucket.ID, UpdateInput{Name: req.Name})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) deleteBucket(c *gin.Context) {
	bucket, ok := h.ownedBucket(c)
	if !ok {
		return
	}

	if err := h.service.DeleteBucket(c.Request.Context(), bucket.ID); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) getStats(c *gin.Context) {
	bucket, ok := h.ownedBucket(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bucket.Stats())
}

func (h *httpHandler) reconcile(c *gin.Context) {
	bucket, ok := h.ownedBucket(c)
	if !ok {
		return
	}

	stats, err := h.service.ReconcileStats(c.Request.Context(), bucket.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ownedBucket resolves :bucketID for the authenticated owner and writes the error response
// when it cannot.
func (h *httpHandler) ownedBucket(c *gin.Context) (Bucket, bool) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apperr.Respond(c, auth.ErrUnauthorized)
		return Bucket{}, false
	}

	bucketID, err := uuid.Parse(c.Param("bucketID"))
	if err != nil {
		apperr.Respond(c, apperr.Validation("invalid bucket id"))
		return Bucket{}, false
	}

	bucket, err := h.service.GetOwnedBucket(c.Request.Context(), userID, bucketID)
	if err != nil {
		apperr.Respond(c, err)
		return Bucket{}, false
	}
	return bucket, true
}
