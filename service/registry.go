// Package service implements the registry's domain operations: the exported
// ABI table of SPEC_FULL.md §6.1, one exported method or function per row
// (the pure byte-encoding and merge rows are package functions), wired atop canon,
// identity, provenance, storage, config, and regmetrics. Registry is the
// single call surface the ambient execution host invokes; it holds no
// per-call state, only the handles it was constructed with.
package service

import (
	"time"

	"github.com/jmhodges/clock"

	"github.com/meshregistry/registry/config"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/regerrors"
	"github.com/meshregistry/registry/regmetrics"
	"github.com/meshregistry/registry/rlog"
	"github.com/meshregistry/registry/storage"
)

// Registry is the domain-operations surface. Every exported method
// corresponds to one row of SPEC_FULL.md §6.1's host ABI table.
type Registry struct {
	store      *storage.Engine
	cfg        *config.Store
	cache      identity.PublicKeyCache
	metrics    *regmetrics.Metrics
	log        rlog.Logger
	clk        clock.Clock
	hostPeerId string
	hostSigner identity.Signer
}

// New constructs a Registry. clk is used only for internal timing (metrics
// observation); every timestamp that crosses the signed envelope boundary
// arrives as an explicit argument, never read from clk — see SPEC_FULL.md
// §5.
func New(store *storage.Engine, cfg *config.Store, cache identity.PublicKeyCache, metrics *regmetrics.Metrics, log rlog.Logger, clk clock.Clock, hostPeerId string, hostSigner identity.Signer) *Registry {
	return &Registry{
		store:      store,
		cfg:        cfg,
		cache:      cache,
		metrics:    metrics,
		log:        log,
		clk:        clk,
		hostPeerId: hostPeerId,
		hostSigner: hostSigner,
	}
}

// observe wraps a domain operation with metrics, mirroring the teacher's use
// of FBAdapter/HTTPMonitor to time every RPC (metrics/metrics.go). start is
// the clk.Now() captured when the operation began, so elapsed duration is
// measured against the same clock the rest of the registry uses.
func (r *Registry) observe(op string, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = regerrors.KindOf(err).String()
	}
	if r.metrics != nil {
		r.metrics.ObserveResult(op, result)
		r.metrics.OperationDuration.WithLabelValues(op).Observe(r.clk.Now().Sub(start).Seconds())
	}
}

// verifyPublicKey extracts and caches the public key embedded in peerId.
func (r *Registry) verifyPublicKey(peerId string) (*identity.PublicKey, error) {
	if r.cache != nil {
		return identity.CachedExtractPublicKey(r.cache, peerId)
	}
	return identity.ExtractPublicKey(peerId)
}

// thresholds reloads the live configuration and returns the expiration and
// staleness windows, in seconds, per SPEC_FULL.md §10.1 (no caching across
// calls).
func (r *Registry) thresholds() (expiredTimeout, staleTimeout uint64, err error) {
	cfg, err := r.cfg.Current()
	if err != nil {
		return 0, 0, regerrors.New(regerrors.InternalError, "reading config: %v", err)
	}
	return cfg.ExpiredTimeoutSecs, cfg.StaleTimeoutSecs, nil
}
