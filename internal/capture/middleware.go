package capture

import (
	"bytes"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hitwatch/request-analytics/internal/event"
	"github.com/hitwatch/request-analytics/internal/visitor"
	"go.uber.org/zap"
)

// maxBodyCapture caps how much of the response body is buffered for page
// title extraction; a <title> tag past this point is not worth the memory.
const maxBodyCapture = 64 * 1024

// ContextUserIDKey is where an auth layer can park the authenticated
// principal's id for the capture hook to pick up.
const ContextUserIDKey = "analytics_user_id"

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(data []byte) (int, error) {
	if remaining := maxBodyCapture - w.buf.Len(); remaining > 0 {
		if len(data) <= remaining {
			w.buf.Write(data)
		} else {
			w.buf.Write(data[:remaining])
		}
	}
	return w.ResponseWriter.Write(data)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// WebMiddleware captures browser page requests; the response body is
// buffered so the page title can be extracted.
func WebMiddleware(pipeline *Pipeline, recorder *event.Service, logger *zap.Logger) gin.HandlerFunc {
	return middleware(pipeline, recorder, event.CategoryWeb, true, logger)
}

// APIMiddleware captures API requests; no body buffering, API responses
// carry no page title.
func APIMiddleware(pipeline *Pipeline, recorder *event.Service, logger *zap.Logger) gin.HandlerFunc {
	return middleware(pipeline, recorder, event.CategoryAPI, false, logger)
}

// middleware is the shared adapter both categories go through. Capture runs
// after the response is written and must never affect request serving: every
// failure, panics included, is logged and swallowed.
func middleware(pipeline *Pipeline, recorder *event.Service, category string, captureBody bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// The visitor cookie has to be issued before headers are flushed,
		// so a new id is derived up front and reused by the pipeline.
		cookieValue, _ := c.Cookie(visitor.CookieName)
		visitorID, isNew := visitor.VisitorID(cookieValue, visitor.Fingerprint{
			UserAgent:      c.Request.UserAgent(),
			AcceptLanguage: c.GetHeader("Accept-Language"),
			AcceptEncoding: c.GetHeader("Accept-Encoding"),
			IPAddress:      c.ClientIP(),
		})
		if isNew {
			c.SetCookie(visitor.CookieName, visitorID, visitor.CookieMaxAge, "/", "", false, true)
		}

		var body *bodyCapture
		if captureBody {
			body = &bodyCapture{ResponseWriter: c.Writer}
			c.Writer = body
		}

		c.Next()

		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in capture hook",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
			}
		}()

		req := RequestInfo{
			Path:           c.Request.URL.Path,
			Method:         c.Request.Method,
			UserAgent:      c.Request.UserAgent(),
			AcceptLanguage: c.GetHeader("Accept-Language"),
			AcceptEncoding: c.GetHeader("Accept-Encoding"),
			Referrer:       c.GetHeader("Referer"),
			DNTPresent:     strings.TrimSpace(c.GetHeader("DNT")) == "1",
			EdgeCountry:    c.GetHeader("CF-IPCountry"),
			IPAddress:      c.ClientIP(),
			QueryParams:    c.Request.URL.Query(),
			VisitorCookie:  visitorID,
			UserID:         userIDFromContext(c),
		}

		resp := ResponseInfo{Status: c.Writer.Status()}
		if body != nil {
			resp.Body = body.buf.String()
		}

		ev, err := pipeline.Capture(c.Request.Context(), req, resp, category, time.Since(start))
		if err != nil {
			logger.Error("Capture pipeline failed",
				zap.Error(err),
				zap.String("path", req.Path),
			)
			return
		}
		if ev == nil {
			return
		}

		if err := recorder.Record(c.Request.Context(), ev); err != nil {
			logger.Error("Failed to record captured event",
				zap.Error(err),
				zap.String("path", ev.Path),
				zap.String("visitor_id", ev.VisitorID),
			)
		}
	}
}

func userIDFromContext(c *gin.Context) *int64 {
	value, ok := c.Get(ContextUserIDKey)
	if !ok {
		return nil
	}
	id, ok := value.(int64)
	if !ok {
		return nil
	}
	return &id
}
