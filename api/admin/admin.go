// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/godwokenrises/godwoken-sub004/api/admin/apilogs"
	"github.com/godwokenrises/godwoken-sub004/api/admin/loglevel"
	"github.com/godwokenrises/godwoken-sub004/health"

	healthAPI "github.com/godwokenrises/godwoken-sub004/api/admin/health"
)

// New returns the admin handler serving under /admin.
func New(logLevel *slog.LevelVar, apiLogs *atomic.Bool, h *health.Health) http.HandlerFunc {
	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()

	loglevel.New(logLevel).Mount(sub, "/loglevel")
	apilogs.New(apiLogs).Mount(sub, "/apilogs")
	healthAPI.NewAPI(h).Mount(sub, "/health")

	handler := handlers.CompressHandler(router)
	return handler.ServeHTTP
}
