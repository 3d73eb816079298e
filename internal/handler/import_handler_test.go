package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, field, filename string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestImportHandlerRejectsOversizedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(nil, 16)

	body, contentType := multipartUpload(t, "file", "planilha.xlsx", bytes.Repeat([]byte("x"), 64))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/imports/courses", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "kind", Value: "courses"}}

	handler.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImportHandlerRejectsMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(nil, 1<<20)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/imports/courses", nil)
	c.Params = gin.Params{{Key: "kind", Value: "courses"}}

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandlerRejectsUnknownKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(nil, 1<<20)

	body, contentType := multipartUpload(t, "file", "planilha.xlsx", []byte("ok"))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/imports/whatever", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "kind", Value: "whatever"}}

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
