// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/godwokenrises/godwoken-sub004/api/accounts"
	"github.com/godwokenrises/godwoken-sub004/api/blocks"
	"github.com/godwokenrises/godwoken-sub004/api/logs"
	"github.com/godwokenrises/godwoken-sub004/api/middleware"
	"github.com/godwokenrises/godwoken-sub004/api/node"
	"github.com/godwokenrises/godwoken-sub004/api/scripts"
	"github.com/godwokenrises/godwoken-sub004/api/subscriptions"
	"github.com/godwokenrises/godwoken-sub004/api/transactions"
	"github.com/godwokenrises/godwoken-sub004/api/withdrawals"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/logdb"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins       string
	BacktraceLimit       uint32
	LogsLimit            uint64
	PprofOn              bool
	SkipLogs             bool
	EnableMetrics        bool
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
	Log5xxErrors         bool
}

// New returns the api handler and a func closing the hijacked subscription conns.
func New(
	repo *chain.Repository,
	stater *state.Stater,
	pool *txpool.TxPool,
	logDB *logdb.LogDB,
	info node.Info,
	opts Options,
) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	accounts.New(repo, stater, pool).
		Mount(router, "/accounts")
	scripts.New(repo, stater, pool).
		Mount(router, "/scripts")
	transactions.New(repo, pool).
		Mount(router, "/transactions")
	withdrawals.New(repo, pool).
		Mount(router, "/withdrawals")
	blocks.New(repo).
		Mount(router, "/blocks")
	if !opts.SkipLogs {
		logs.New(logDB, opts.LogsLimit).
			Mount(router, "/logs")
	}
	node.New(info).
		Mount(router, "/node")
	subs := subscriptions.New(repo, origins, opts.BacktraceLimit, pool)
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)(handler)

	enabled := opts.EnableReqLogger
	if enabled == nil {
		enabled = &atomic.Bool{}
	}
	handler = middleware.RequestLoggerMiddleware(logger, enabled, opts.SlowQueriesThreshold, opts.Log5xxErrors)(handler)

	// subscriptions handles hijacked conns, which need to be closed
	return handler.ServeHTTP, subs.Close
}
