package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// bufferedWriter holds the response body back until the ETag is known.
type bufferedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// ETagCache 为 GET 响应计算 SHA-256 ETag；If-None-Match 命中时返回 304。
// 用于 JWKS 这类变化稀少的公开文档。
func ETagCache(maxAge time.Duration) gin.HandlerFunc {
	cacheControl := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds())) + ", must-revalidate"
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		w := &bufferedWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		body := w.body.Bytes()
		if w.Status() == http.StatusOK && len(body) > 0 {
			etag := fmt.Sprintf(`"%x"`, sha256.Sum256(body))
			w.Header().Set("ETag", etag)
			w.Header().Set("Cache-Control", cacheControl)
			if c.GetHeader("If-None-Match") == etag {
				w.ResponseWriter.WriteHeader(http.StatusNotModified)
				w.ResponseWriter.WriteHeaderNow()
				return
			}
		}
		_, _ = w.ResponseWriter.Write(body)
	}
}
