package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"inventory/internal/logs"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "reqid"
	RequestIDHeader        = "X-Request-Id"
	maxRequestIDLen        = 128
)

// RequestID берёт id запроса из заголовка или выдаёт новый uuid.
// Чужой id без печатных ASCII или слишком длинный заменяется.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			if id != "" {
				logs.Logger.WithFields(logrus.Fields{
					"uri":    r.RequestURI,
					"method": r.Method,
				}).Debug("invalid request id replaced")
			}
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func GetRequestID(r *http.Request) string {
	v := r.Context().Value(requestIDKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Log — запись лога с reqid запроса.
func Log(r *http.Request) *logrus.Entry {
	return logs.Logger.WithField("reqid", GetRequestID(r))
}
