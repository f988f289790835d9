// mithril-miner is a CryptoNight mining client: it logs into a Stratum
// pool, farms hash work out to a pool of worker goroutines, and wires up
// the status server, APM, webhook alerts and submission breaker around
// them. The nonce-selection loop and worker pool here are thin wiring
// around the hash engine and Stratum client, not part of either's
// contract.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mithril-go/miner/internal/api"
	"github.com/mithril-go/miner/internal/config"
	"github.com/mithril-go/miner/internal/cryptonight"
	"github.com/mithril-go/miner/internal/newrelic"
	"github.com/mithril-go/miner/internal/notify"
	"github.com/mithril-go/miner/internal/policy"
	"github.com/mithril-go/miner/internal/profiling"
	"github.com/mithril-go/miner/internal/storage"
	"github.com/mithril-go/miner/internal/stratum"
	"github.com/mithril-go/miner/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// nonceOffset is the byte offset of the 4-byte nonce field within a
// cryptonote block template blob.
const nonceOffset = 39

// shareRetention bounds how long a submitted (job_id, nonce) pair is kept
// in the de-dup cache before it ages out.
const shareRetention = 30 * time.Minute

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mithril-miner v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	util.Infof("mithril-miner v%s starting, variant=%s scratchpads=%d", version, cfg.Mining.Variant, cfg.Mining.Scratchpads)

	if cfg.Webhook.MinerName == "" {
		cfg.Webhook.MinerName = cfg.Pool.WalletAddress
	}

	var cache *storage.Cache
	if cfg.Redis.URL != "" {
		cache, err = storage.NewCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			util.Warnf("share de-dup cache unavailable, continuing without it: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	notifier := notify.NewNotifier(&cfg.Webhook)

	breaker := policy.NewBreaker(&policy.Config{
		MaxInvalidRatio: cfg.Security.MaxInvalidShareRatio,
		Window:          cfg.Security.InvalidShareWindow,
		Cooldown:        cfg.Security.Cooldown,
		MinSamples:      cfg.Security.MinSamples,
	})

	var pprofServer *profiling.Server
	if cfg.Profiling.Enabled {
		pprofServer = profiling.NewServer(&cfg.Profiling)
		if err := pprofServer.Start(); err != nil {
			util.Errorf("Failed to start pprof server: %v", err)
		}
	}

	var nrAgent *newrelic.Agent
	if cfg.NewRelic.Enabled {
		nrAgent = newrelic.NewAgent(&cfg.NewRelic)
		if err := nrAgent.Start(); err != nil {
			util.Errorf("Failed to start New Relic agent: %v", err)
		}
	}

	stats := &api.Stats{}
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, stats)
		if err := apiServer.Start(); err != nil {
			util.Errorf("Failed to start API server: %v", err)
		}
	}

	errorSink := make(chan error, 16)
	actions := make(chan stratum.Action, 64)

	client := stratum.New(stratum.PoolConfig{
		PoolAddress:   cfg.Pool.Address,
		WalletAddress: cfg.Pool.WalletAddress,
		PoolPassword:  cfg.Pool.Password,
	}, errorSink)
	client.Subscribe(actions)

	if err := client.Login(); err != nil {
		util.Fatalf("Failed to log in to pool: %v", err)
	}

	cmdCh, err := client.CommandChannel()
	if err != nil {
		util.Fatalf("stratum client not initialized: %v", err)
	}

	jobs := newJobHolder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Mining.Scratchpads; i++ {
		wg.Add(1)
		go runWorker(ctx, &wg, i, cfg, jobs, cmdCh, cache, breaker, stats, nrAgent)
	}

	go dispatchActions(ctx, actions, jobs, stats, notifier, nrAgent, breaker, cfg.Security.InvalidShareWindow)
	go watchErrors(ctx, errorSink, notifier, nrAgent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	util.Info("Miner started. Press Ctrl+C to stop.")
	<-sigChan
	util.Info("Shutting down...")

	cancel()
	wg.Wait()

	if apiServer != nil {
		apiServer.Stop()
	}
	if pprofServer != nil {
		pprofServer.Stop()
	}
	if nrAgent != nil {
		nrAgent.Stop()
	}

	util.Info("Miner stopped")
}

// jobHolder holds the most recently received mining job. Workers read a
// snapshot so a job update mid-hash never tears the blob they're working
// from; gen lets a worker notice it should restart its nonce search.
type jobHolder struct {
	mu  sync.RWMutex
	job *stratum.JobAction
	gen uint64
}

func newJobHolder() *jobHolder {
	return &jobHolder{}
}

func (h *jobHolder) set(job stratum.JobAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job = &job
	h.gen++
}

func (h *jobHolder) get() (*stratum.JobAction, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.job, h.gen
}

// randomNonce picks a random starting nonce so parallel workers don't all
// search the same low range of nonce space.
func randomNonce() uint32 {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return 0
	}
	return uint32(n.Uint64())
}

func runWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	id int,
	cfg *config.Config,
	jobs *jobHolder,
	cmdCh chan<- stratum.Command,
	cache *storage.Cache,
	breaker *policy.Breaker,
	stats *api.Stats,
	nrAgent *newrelic.Agent,
) {
	defer wg.Done()

	scratchpad := cryptonight.NewScratchpad()
	aes := cryptonight.StdAES{}
	variant := cfg.Mining.ParsedVariant()

	var lastGen uint64
	nonce := randomNonce()

	windowStart := time.Now()
	windowHashes := 0
	currentRate := 0.0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, gen := jobs.get()
		if job == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if gen != lastGen {
			lastGen = gen
			nonce = randomNonce()
		}

		blob, err := util.HexToBytes(job.Blob)
		if err != nil {
			util.Warnf("worker %d: invalid job blob: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if len(blob) < nonceOffset+4 {
			util.Warnf("worker %d: job blob too short for nonce field", id)
			time.Sleep(time.Second)
			continue
		}

		nonce++
		binary.BigEndian.PutUint32(blob[nonceOffset:nonceOffset+4], nonce)

		var hashHex string
		compute := func() error {
			var hashErr error
			hashHex, hashErr = cryptonight.Hash(scratchpad, blob, aes, variant)
			return hashErr
		}
		if nrAgent != nil {
			err = nrAgent.TimeHash(compute)
		} else {
			err = compute()
		}
		if err != nil {
			util.Warnf("worker %d: hash error: %v", id, err)
			continue
		}

		windowHashes++
		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			currentRate = float64(windowHashes) / elapsed.Seconds()
			windowHashes = 0
			windowStart = time.Now()
		}
		stats.RecordHash(currentRate)
		stats.SetCurrentJob(job.JobID)

		hashBytes, err := util.HexToBytes(hashHex)
		if err != nil {
			continue
		}

		target, err := util.ParseStratumTarget(job.Target)
		if err != nil {
			util.Warnf("worker %d: invalid job target: %v", id, err)
			continue
		}
		if !util.HashMeetsTarget(hashBytes, target) {
			continue
		}

		if breaker.Tripped() {
			continue
		}

		nonceHex := util.BytesToHexNoPre(blob[nonceOffset : nonceOffset+4])

		if cache != nil {
			if submitted, err := cache.WasSubmitted(job.JobID, nonceHex); err == nil && submitted {
				continue
			}
		}

		share := stratum.Share{
			MinerID: job.MinerID,
			JobID:   job.JobID,
			Nonce:   nonceHex,
			Hash:    hashHex,
		}
		if err := stratum.SubmitShare(cmdCh, share); err != nil {
			util.Errorf("worker %d: submit share: %v", id, err)
			continue
		}

		if cache != nil {
			if err := cache.RecordSubmitted(job.JobID, nonceHex, shareRetention); err != nil {
				util.Warnf("worker %d: record submitted share: %v", id, err)
			}
		}
		if nrAgent != nil {
			nrAgent.RecordShareSubmission(job.JobID, nonceHex, 0, true)
		}
	}
}

// dispatchActions fans the Stratum client's inbound actions out to the job
// holder, stats and breaker, for as long as ctx is alive.
func dispatchActions(
	ctx context.Context,
	actions <-chan stratum.Action,
	jobs *jobHolder,
	stats *api.Stats,
	notifier *notify.Notifier,
	nrAgent *newrelic.Agent,
	breaker *policy.Breaker,
	window time.Duration,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case action, ok := <-actions:
			if !ok {
				return
			}
			switch a := action.(type) {
			case stratum.JobAction:
				jobs.set(a)
				if nrAgent != nil {
					nrAgent.RecordLogin(a.MinerID)
				}
			case stratum.OkAction:
				stats.RecordShareAccepted()
				breaker.RecordOutcome(true)
			case stratum.ErrorAction:
				stats.RecordShareRejected()
				util.Warnf("pool reported an error: %s", a.Err)
				notifier.NotifyStratumError(a.Err)
				if nrAgent != nil {
					nrAgent.RecordStratumError(a.Err)
				}
				if tripped, ratio := breaker.RecordOutcome(false); tripped {
					notifier.NotifyRejectionRatio(ratio, window)
				}
			case stratum.KeepAliveOkAction:
				// no state to update
			}
		}
	}
}

// watchErrors surfaces terminal Stratum I/O errors: they end the session,
// so the only useful response left is to alert and let the process exit.
func watchErrors(ctx context.Context, errorSink <-chan error, notifier *notify.Notifier, nrAgent *newrelic.Agent) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errorSink:
			if !ok {
				return
			}
			util.Errorf("stratum session error: %v", err)
			notifier.NotifyStratumError(err.Error())
			if nrAgent != nil {
				nrAgent.RecordStratumError(err.Error())
			}
		}
	}
}
