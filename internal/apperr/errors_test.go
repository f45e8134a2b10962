package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfFollowsWrapChain(t *testing.T) {
	base := Conflict("bucket name %q already exists", "media")
	wrapped := fmt.Errorf("create bucket: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestSentinelMatchesWithErrorsIs(t *testing.T) {
	sentinel := New(KindNotFound, "file not found")
	err := fmt.Errorf("lookup: %w", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStorageAndConsistencyUnwrap(t *testing.T) {
	cause := errors.New("signature mismatch")

	storageErr := Storage("presign upload", cause)
	assert.ErrorIs(t, storageErr, cause)
	assert.Equal(t, KindStorage, KindOf(storageErr))

	driftErr := Consistency("create file", cause)
	assert.ErrorIs(t, driftErr, cause)
	assert.Equal(t, KindConsistency, KindOf(driftErr))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindStorage, "op", nil, "message"))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindUnauthorized: http.StatusUnauthorized,
		KindStorage:      http.StatusBadGateway,
		KindConsistency:  http.StatusInternalServerError,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind.String())
	}
}

func TestRespondUsesKindNotMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// A user-supplied name that looks like another error class must not change the status.
	err := Validation("name %q is invalid", "already exists not found")

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(c, err)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["kind"])
}

func TestRespondHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(c, errors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
}
