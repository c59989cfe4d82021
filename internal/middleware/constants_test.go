package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestErrorBody(t *testing.T) {
	t.Parallel()

	body := ErrorBody(http.StatusTooManyRequests, MsgRateLimitExceeded)

	assert.JSONEq(t, `{"error":{"code":"429","message":"rate limit exceeded"}}`, string(body))
}

func TestErrorBody_EscapesMessage(t *testing.T) {
	t.Parallel()

	body := ErrorBody(http.StatusBadRequest, `unexpected "token" at 3`)

	assert.True(t, gjson.ValidBytes(body))
	assert.Equal(t, `unexpected "token" at 3`, gjson.GetBytes(body, "error.message").String())
	assert.Equal(t, "400", gjson.GetBytes(body, "error.code").String())
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusServiceUnavailable, MsgServiceUnavailable)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, ContentTypeODataJSON, rec.Header().Get(HeaderContentType))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get(HeaderContentLength))
	assert.Equal(t, "503", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, MsgServiceUnavailable, gjson.Get(rec.Body.String(), "error.message").String())
}
