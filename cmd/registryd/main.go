// Command registryd assembles one registry node: storage, configuration,
// logging, metrics, and the domain operations surface, then keeps the
// process alive so the ambient execution host can invoke service.Registry's
// methods. It also runs a minimal self-scheduler for clear_expired and
// evict_stale, standing in for the external replication scheduler the
// specification explicitly treats as out of scope.
package main

import (
	"crypto/ed25519"
	"flag"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshregistry/registry/config"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/regmetrics"
	"github.com/meshregistry/registry/rlog"
	"github.com/meshregistry/registry/service"
	"github.com/meshregistry/registry/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the registry's TOML configuration file")
	verbosity := flag.Int("verbosity", 0, "log verbosity, higher is more verbose")
	flag.Parse()

	log := rlog.New("registryd", *verbosity)

	cfg, err := config.NewStore(*configPath, config.Config{
		ExpiredTimeoutSecs: 86400,
		StaleTimeoutSecs:   3600,
		DBDriver:           "sqlite3",
		DBDSN:              "/tmp/registry.db",
		ListenAddr:         ":8080",
		MetricsListenAddr:  ":9090",
	})
	if err != nil {
		log.Error(err, "loading configuration")
		return
	}

	current, err := cfg.Current()
	if err != nil {
		log.Error(err, "reading configuration")
		return
	}

	store, err := storage.Open(current.DBDriver, current.DBDSN, log)
	if err != nil {
		log.Error(err, "opening storage")
		return
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	metrics := regmetrics.New(reg)

	var cache identity.PublicKeyCache
	if current.PubkeyCacheRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: current.PubkeyCacheRedisAddr})
		cache = identity.NewRedisCache(rdb, 10*time.Minute)
	} else {
		cache = identity.NewLRUCache(4096)
	}

	hostPeerId := current.LocalHostPeerId
	var hostSigner identity.Signer
	if current.HostKeyPKCS11Module != "" {
		hostSigner, err = identity.NewPKCS11Signer(hostPeerId, current.HostKeyPKCS11Module,
			current.HostKeyPKCS11TokenLabel, current.HostKeyPKCS11PIN, current.HostKeyPKCS11Slot, current.HostKeyPKCS11KeyLabel)
		if err != nil {
			log.Error(err, "opening PKCS#11 host signer")
			return
		}
	} else {
		// No PKCS#11 host key configured: mint an ephemeral software
		// identity for this process, replacing any configured
		// local_host_peer_id, since a node needs a holder key to countersign
		// host records and the config carries no software private key.
		pub, priv, genErr := ed25519.GenerateKey(nil)
		if genErr != nil {
			log.Error(genErr, "generating ephemeral host key")
			return
		}
		hostPeerId = identity.NewEd25519PeerId(pub)
		hostSigner = identity.NewSoftwareEd25519Signer(hostPeerId, priv)
		log.Info("no host_key_pkcs11_module configured, minted an ephemeral host identity", "peer_id", hostPeerId)
	}

	clk := clock.New()
	registry := service.New(store, cfg, cache, metrics, log, clk, hostPeerId, hostSigner)

	go runScheduler(registry, clk, hostPeerId, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", "addr", current.MetricsListenAddr)
	if err := http.ListenAndServe(current.MetricsListenAddr, mux); err != nil {
		log.Error(err, "metrics server exited")
	}
}

// selfTetraplet builds the CallTetraplets asserting that argIndex's
// timestamp was produced by the local peer/timestamp_sec oracle — valid
// here because the scheduler and the oracle run in the same process.
func selfTetraplet(argIndex int, hostPeerId string) provenance.CallTetraplets {
	tetraplets := make(provenance.CallTetraplets, argIndex+1)
	tetraplets[argIndex] = []provenance.Tetraplet{{
		ServiceId: "peer",
		FuncName:  "timestamp_sec",
		PeerId:    hostPeerId,
	}}
	return tetraplets
}

// runScheduler periodically invokes clear_expired and evict_stale, standing
// in for the external replication scheduler (out of scope per the
// specification) so a standalone node still reclaims storage.
func runScheduler(registry *service.Registry, clk clock.Clock, hostPeerId string, log rlog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := uint64(clk.Now().Unix())

		expired := registry.ClearExpired(now, selfTetraplet(0, hostPeerId))
		if !expired.Success {
			log.Error(nil, "clear_expired failed", "error", expired.Error)
		} else {
			log.V(1).Info("clear_expired", "keys", expired.Value.Keys, "records", expired.Value.Records, "tombstones", expired.Value.Tombstones)
		}

		stale := registry.EvictStale(now, selfTetraplet(0, hostPeerId))
		if !stale.Success {
			log.Error(nil, "evict_stale failed", "error", stale.Error)
		} else {
			log.V(1).Info("evict_stale", "stale_keys", len(stale.Value))
		}
	}
}
