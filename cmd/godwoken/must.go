// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/common/fdlimit"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/co"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/logdb"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/metrics"
	"github.com/godwokenrises/godwoken-sub004/state"
)

func initLogger(ctx *cli.Context) *slog.LevelVar {
	lvl := &slog.LevelVar{}
	lvl.Set(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, lvl, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
	return lvl
}

// loadConfig reads the rollup config file over the devnet defaults.
func loadConfig(ctx *cli.Context) *gw.Config {
	cfg := gw.DefaultConfig()
	cfg.BurnLockHash = devBurnLock.Hash()
	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fatal(fmt.Sprintf("read config file [%v]: %v", path, err))
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fatal(fmt.Sprintf("parse config file [%v]: %v", path, err))
		}
	}
	if cfg.BurnLockHash != devBurnLock.Hash() {
		logger.Warn("burn lock hash replaced by the loopback burn lock", "configured", cfg.BurnLockHash)
		cfg.BurnLockHash = devBurnLock.Hash()
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid rollup config:", err)
	}
	return &cfg
}

func buildGenesis(cfg *gw.Config, stater *state.Stater) (*block.Block, *block.GlobalState) {
	b0, gs, err := genesis.NewDevnet(cfg).Timestamp(devnetLaunchTime).Build(stater)
	if err != nil {
		fatal("build genesis:", err)
	}
	return b0, gs
}

// genesisBlock builds the genesis into memory, for the instance dir to be named before opening databases.
func genesisBlock(cfg *gw.Config) *block.Block {
	db, err := lvldb.NewMem()
	if err != nil {
		fatal("open genesis database:", err)
	}
	defer db.Close()

	b0, _ := buildGenesis(cfg, state.NewStater(db, 0))
	return b0
}

func makeDataDir(ctx *cli.Context) string {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dataDir, err))
	}
	return dataDir
}

func makeInstanceDir(ctx *cli.Context, b0 *block.Block) string {
	dataDir := makeDataDir(ctx)

	hash := b0.Hash()
	instanceDir := filepath.Join(dataDir, fmt.Sprintf("instance-%x", hash[24:]))
	if err := os.MkdirAll(instanceDir, 0700); err != nil {
		fatal(fmt.Sprintf("create instance dir [%v]: %v", instanceDir, err))
	}
	return instanceDir
}

func openMainDB(ctx *cli.Context, dataDir string) (*lvldb.LevelDB, int) {
	cacheMB := normalizeCacheSize(ctx.Int(cacheFlag.Name))
	logger.Debug("cache size(MB)", "size", cacheMB)

	// ensure Go's GC ignores the database cache for trigger percentage
	gogc := math.Max(20, math.Min(100, 100/(float64(cacheMB)/1024)))

	logger.Debug("sanitize Go's GC trigger", "percent", int(gogc))
	debug.SetGCPercent(int(gogc))

	fdCache := suggestFDCache()
	logger.Debug("fd cache", "n", fdCache)

	dir := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{
		CacheSize:              cacheMB / 2,
		OpenFilesCacheCapacity: fdCache,
	})
	if err != nil {
		fatal(fmt.Sprintf("open chain database [%v]: %v", dir, err))
	}
	return db, cacheMB
}

func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 128 {
		sizeMB = 128
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/2 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			logger.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

func suggestFDCache() int {
	limit, err := fdlimit.Current()
	if err != nil {
		fatal("failed to get fd limit:", err)
	}
	if limit <= 1024 {
		logger.Warn("low fd limit, increase it if possible", "limit", limit)
	}

	n := limit / 2
	if n > 5120 {
		return 5120
	}
	return n
}

func openLogDB(dataDir string) *logdb.LogDB {
	dir := filepath.Join(dataDir, "logs.db")
	db, err := logdb.New(dir)
	if err != nil {
		fatal(fmt.Sprintf("open log database [%v]: %v", dir, err))
	}
	return db
}

func initChain(cfg *gw.Config, db *lvldb.LevelDB, stater *state.Stater) *chain.Repository {
	b0, gs := buildGenesis(cfg, stater)
	repo, err := chain.NewRepository(db, b0, gs)
	if err != nil {
		fatal("initialize block chain:", err)
	}
	return repo
}

func serve(addr string, handler http.Handler, path string) (string, func()) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fatal(fmt.Sprintf("listen addr [%v]: %v", addr, err))
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + path, func() {
		srv.Close()
		goes.Wait()
	}
}

func startMetricsServer(addr string) (string, func()) {
	metrics.RegisterSystemCollector()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())
	return serve(addr, mux, "/metrics")
}

func printStartupMessage(
	cfg *gw.Config,
	repo *chain.Repository,
	producer gw.Address,
	instanceDir string,
	apiURL string,
	metricsURL string,
	adminURL string,
) {
	tip := repo.Tip()
	fmt.Printf(`Starting %v
    Rollup       [ %v chain %v ]
    Genesis      [ %v ]
    Tip block    [ %v #%v @%v ]
    Producer     [ %v ]
    Instance dir [ %v ]
    API portal   [ %v ]
    Metrics      [ %v ]
    Admin        [ %v ]
`,
		"Godwoken/"+fullVersion(),
		cfg.RollupScriptHash, cfg.ChainID,
		repo.GenesisBlock().Hash(),
		tip.Block.Hash(), tip.Block.Header().Number(), time.UnixMilli(int64(tip.Block.Header().Timestamp())),
		producer,
		instanceDir,
		apiURL,
		orDisabled(metricsURL),
		orDisabled(adminURL),
	)
}

func orDisabled(url string) string {
	if url == "" {
		return "Disabled"
	}
	return url
}
