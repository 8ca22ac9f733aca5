// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/godwokenrises/godwoken-sub004/log"
)

type recordingLogger struct {
	records [][]any
}

func (m *recordingLogger) With(_ ...any) log.Logger                     { return m }
func (m *recordingLogger) New(_ ...any) log.Logger                      { return m }
func (m *recordingLogger) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (m *recordingLogger) Handler() slog.Handler                        { return nil }
func (m *recordingLogger) Trace(_ string, _ ...any)                     {}
func (m *recordingLogger) Debug(_ string, _ ...any)                     {}
func (m *recordingLogger) Error(_ string, _ ...any)                     {}
func (m *recordingLogger) Crit(_ string, _ ...any)                      {}
func (m *recordingLogger) Info(_ string, ctx ...any)                    { m.records = append(m.records, ctx) }
func (m *recordingLogger) Warn(_ string, ctx ...any)                    { m.records = append(m.records, ctx) }

func respond(status int, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		if status != 0 {
			w.WriteHeader(status)
		}
		w.Write([]byte("body"))
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		enabled   bool
		threshold time.Duration
		log5xx    bool
		status    int
		shouldLog bool
	}{
		{"enabled", respond(http.StatusOK, 0), true, 0, false, http.StatusOK, true},
		{"disabled", respond(http.StatusOK, 0), false, 0, false, http.StatusOK, false},
		{"slow query", respond(http.StatusOK, 30*time.Millisecond), false, 10 * time.Millisecond, false, http.StatusOK, true},
		{"fast query", respond(http.StatusOK, 0), false, time.Second, false, http.StatusOK, false},
		{"5xx", respond(http.StatusServiceUnavailable, 0), false, 0, true, http.StatusServiceUnavailable, true},
		{"5xx not logged", respond(http.StatusInternalServerError, 0), false, 0, false, http.StatusInternalServerError, false},
		{"4xx", respond(http.StatusBadRequest, 0), false, 0, true, http.StatusBadRequest, false},
		{"implicit 200", respond(0, 0), false, 0, true, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			var enabled atomic.Bool
			enabled.Store(tt.enabled)

			h := RequestLoggerMiddleware(logger, &enabled, tt.threshold, tt.log5xx)(tt.handler)
			req := httptest.NewRequest(http.MethodPost, "http://example.com/transactions", strings.NewReader(`{"raw":"0x"}`))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if !tt.shouldLog {
				assert.Empty(t, logger.records)
				return
			}
			assert.Len(t, logger.records, 1)
			record := logger.records[0]
			assert.Contains(t, record, "http://example.com/transactions")
			assert.Contains(t, record, http.MethodPost)
			assert.Contains(t, record, `{"raw":"0x"}`)
			assert.Contains(t, record, tt.status)
		})
	}
}

func TestRequestBodyPassedThrough(t *testing.T) {
	var enabled atomic.Bool
	enabled.Store(true)
	var got string
	h := RequestLoggerMiddleware(&recordingLogger{}, &enabled, 0, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		buf := make([]byte, 8)
		for {
			n, err := r.Body.Read(buf)
			sb.Write(buf[:n])
			if err != nil {
				break
			}
		}
		got = sb.String()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload")))
	assert.Equal(t, "payload", got)
}
