// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/godwokenrises/godwoken-sub004/api"
	apinode "github.com/godwokenrises/godwoken-sub004/api/node"
	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/consensus"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/health"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/metrics"
	"github.com/godwokenrises/godwoken-sub004/node"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

const (
	// 2023-01-01T00:00:00Z in milliseconds.
	devnetLaunchTime = 1672531200000
	// base chain blocks
	depositCancelTimeout = 100
)

var (
	version   string
	gitCommit string
	gitTag    string
	logger    = log.WithContext("pkg", "main")

	devOwnerCodeHash = gw.Blake2b([]byte("secp256k1"))
	devBurnLock      = gw.Script{CodeHash: gw.Blake2b([]byte("always-fail")), HashType: gw.HashTypeType}
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Godwoken",
		Usage:     "Node of an optimistic rollup on a loopback base chain",
		Copyright: "2018 The VeChainThor developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			producerFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiBacktraceLimitFlag,
			apiLogsLimitFlag,
			apiSlowQueriesThresholdFlag,
			apiLog5xxErrorsFlag,
			enableAPILogsFlag,
			skipLogsFlag,
			verbosityFlag,
			jsonLogsFlag,
			cacheFlag,
			blockIntervalFlag,
			pollIntervalFlag,
			stashSizeFlag,
			verifyFlag,
			reserveFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
			pprofFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:   "genesis",
				Usage:  "print the rollup info and the genesis global state",
				Flags:  []cli.Flag{configFlag},
				Action: genesisAction,
			},
			{
				Name:   "config",
				Usage:  "print the effective rollup config in yaml",
				Flags:  []cli.Flag{configFlag},
				Action: configAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	exitSignal := handleExitSignal()
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	cfg := loadConfig(ctx)
	instanceDir := makeInstanceDir(ctx, genesisBlock(cfg))

	mainDB, cacheMB := openMainDB(ctx, instanceDir)
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	logDB := openLogDB(instanceDir)
	defer func() { logger.Info("closing log database..."); logDB.Close() }()

	stater := state.NewStater(mainDB, cacheMB*256)
	repo := initChain(cfg, mainDB, stater)

	devs := genesis.DevAccounts()
	producerIndex := ctx.Int(producerFlag.Name)
	if producerIndex < 0 || producerIndex >= len(devs) {
		fatal(fmt.Sprintf("producer index out of range [0, %d)", len(devs)))
	}
	producer := devs[producerIndex].Address
	ownerLock := gw.Script{CodeHash: devOwnerCodeHash, HashType: gw.HashTypeType, Args: producer[:]}

	backends := builtin.NewManager(cfg)
	pkr := packer.New(repo, stater, backends, cfg,
		gw.NewRegistryAddress(gw.ETHRegistryID, producer[:]), ownerLock.Hash(), packer.DefaultLimits())

	txPool := txpool.New(repo, stater, pkr, cfg, txpool.DefaultOptions())
	defer func() { logger.Info("closing tx pool..."); txPool.Close() }()

	blockInterval := time.Duration(ctx.Int(blockIntervalFlag.Name)) * time.Millisecond
	nodeHealth := health.New(blockInterval)

	// the loopback base chain restarts from the local tip
	baseChain, err := node.NewLoopback(rollup.New(cfg, backends), repo.GenesisBlock(), repo.Tip().GlobalState, node.LoopbackOptions{
		OwnerLock:     ownerLock,
		BurnLock:      devBurnLock,
		Reserve:       ctx.Uint64(reserveFlag.Name),
		CancelTimeout: depositCancelTimeout,
	})
	if err != nil {
		fatal("create loopback base chain:", err)
	}

	var metricsURL, adminURL string
	if ctx.Bool(enableMetricsFlag.Name) {
		url, closeFunc := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		defer func() { logger.Info("stopping metrics server..."); closeFunc() }()
		metricsURL = url
	}

	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))
	if ctx.Bool(enableAdminFlag.Name) {
		url, closeFunc, err := api.StartAdminServer(ctx.String(adminAddrFlag.Name), logLevel, apiLogs, nodeHealth)
		if err != nil {
			fatal("start admin server:", err)
		}
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
		adminURL = url
	}

	apiHandler, apiCloser := api.New(
		repo,
		stater,
		txPool,
		logDB,
		apinode.NewInfo(fullVersion(), cfg, repo.GenesisBlock().Hash()),
		api.Options{
			AllowedOrigins:       ctx.String(apiCorsFlag.Name),
			BacktraceLimit:       uint32(ctx.Int(apiBacktraceLimitFlag.Name)),
			LogsLimit:            uint64(ctx.Int(apiLogsLimitFlag.Name)),
			PprofOn:              ctx.Bool(pprofFlag.Name),
			SkipLogs:             ctx.Bool(skipLogsFlag.Name),
			EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
			EnableReqLogger:      apiLogs,
			SlowQueriesThreshold: time.Duration(ctx.Int(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
			Log5xxErrors:         ctx.Bool(apiLog5xxErrorsFlag.Name),
		},
	)
	defer func() { logger.Info("closing API..."); apiCloser() }()

	apiURL, srvCloser := serve(ctx.String(apiAddrFlag.Name), apiHandler, "/")
	defer func() { logger.Info("stopping API server..."); srvCloser() }()

	printStartupMessage(cfg, repo, producer, instanceDir, apiURL, metricsURL, adminURL)
	go checkClockOffset(blockInterval)

	return node.New(
		repo,
		stater,
		txPool,
		logDB,
		baseChain,
		consensus.New(repo, stater, backends, cfg),
		nodeHealth,
		kv.Bucket("stash").NewStore(mainDB),
		node.Options{
			BlockInterval: blockInterval,
			PollInterval:  time.Duration(ctx.Int(pollIntervalFlag.Name)) * time.Millisecond,
			StashSize:     ctx.Int(stashSizeFlag.Name),
			Verify:        ctx.Bool(verifyFlag.Name),
		},
	).Run(exitSignal)
}

func genesisAction(ctx *cli.Context) error {
	cfg := loadConfig(ctx)
	db, err := lvldb.NewMem()
	if err != nil {
		return err
	}
	defer db.Close()

	b0, gs := buildGenesis(cfg, state.NewStater(db, 0))
	out := struct {
		Info        apinode.Info       `json:"info"`
		GlobalState *block.GlobalState `json:"globalState"`
	}{apinode.NewInfo(fullVersion(), cfg, b0.Hash()), gs}

	data, err := json.MarshalIndent(&out, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func configAction(ctx *cli.Context) error {
	data, err := yaml.Marshal(loadConfig(ctx))
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
