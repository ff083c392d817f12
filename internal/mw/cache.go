package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

// recordingWriter copies the body while it is written to the client.
type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RefreshFunc reports whether a request asks for fresh data.
type RefreshFunc func(c *gin.Context) bool

// QueryRefresh treats "?<param>=true" as a refresh request.
func QueryRefresh(param string) RefreshFunc {
	return func(c *gin.Context) bool {
		return c.Query(param) == "true"
	}
}

// Cache serves repeated GET requests from store, keyed by request URI. Only
// 2xx responses are kept.
//
// A request for which refresh returns true always reaches the handler. Its
// response is never served from the cache and replaces the entry for the
// bare path, so plain requests see the refreshed data too.
func Cache(store *cache.Cache, duration time.Duration, refresh RefreshFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if refresh != nil && refresh(c) {
			key = c.Request.URL.Path
			store.Delete(key)
		} else if v, found := store.Get(key); found {
			writeCached(c, v.(cachedResponse))
			return
		}

		rw := &recordingWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = rw

		c.Next()

		if rw.Status() >= 200 && rw.Status() < 300 {
			store.Set(key, cachedResponse{
				status:  rw.Status(),
				headers: rw.Header().Clone(),
				body:    rw.body.Bytes(),
			}, duration)
		}
	}
}

func writeCached(c *gin.Context, resp cachedResponse) {
	for k, v := range resp.headers {
		c.Writer.Header()[k] = v
	}
	c.Writer.Header().Set("X-Cache", "HIT")
	c.Writer.WriteHeader(resp.status)
	c.Writer.Write(resp.body)
	c.Abort()
}
