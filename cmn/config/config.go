// Package config implements the global-config-owner pattern the teacher
// uses (cmn.GCO.Get() in xact/xs/tcb.go): a single atomically-swapped
// pointer, loaded once at process start and replaced only by an explicit
// Load or Set call (no signal triggers a reload), never threaded through
// every constructor by hand.
package config

import (
	"encoding/json"
	"os"
	"sync/atomic"
	"time"
)

// Config is the server-side process configuration (§6 env/secrets, §5
// timeouts, §4.7 rate limits).
type Config struct {
	Postgres struct {
		DSN         string `json:"dsn"`
		MaxConns    int32  `json:"max_conns"`
	} `json:"postgres"`

	ObjectStore struct {
		Backend string `json:"backend"` // s3|azure|gcs|hdfs
		Bucket  string `json:"bucket"`
	} `json:"object_store"`

	OCR struct {
		Endpoint string        `json:"endpoint"`
		APIKey   string        `json:"api_key"`
		Timeout  time.Duration `json:"timeout"`
	} `json:"ocr"`

	Quota struct {
		FreeTierLimit int `json:"free_tier_limit"`
		HardCapPendingQuota int `json:"hard_cap_pending_quota"`
	} `json:"quota"`

	RateLimit struct {
		UploadsPerMinute int `json:"uploads_per_minute"`
	} `json:"rate_limit"`

	WorkQueue struct {
		PollInterval    time.Duration `json:"poll_interval"`
		PollIntervalMax time.Duration `json:"poll_interval_max"`
		LeaseDuration   time.Duration `json:"lease_duration"`
		MaxRetries      int           `json:"max_retries"`
		ClaimBatchSize  int           `json:"claim_batch_size"`
	} `json:"work_queue"`

	Destinations map[string]DestinationConfig `json:"destinations"`

	Secrets struct {
		IntegrationMasterSecret string `json:"integration_master_secret"`
		JWTSigningKey           string `json:"jwt_signing_key"`
	} `json:"secrets"`

	HTTP struct {
		ListenAddr      string        `json:"listen_addr"`
		DestTimeout     time.Duration `json:"dest_timeout"`
		ObjStoreTimeout time.Duration `json:"objstore_timeout"`
	} `json:"http"`

	Logging struct {
		Pretty bool   `json:"pretty"`
		Level  string `json:"level"`
	} `json:"logging"`

	// Kubernetes configures the optional, informational-only fleet-size
	// reporter (SPEC_FULL.md §C.4); left zero-valued outside k8s, where
	// kubefleet.NewInCluster simply fails and the worker runs without it.
	Kubernetes struct {
		Namespace          string `json:"namespace"`
		FleetLabelSelector string `json:"fleet_label_selector"`
	} `json:"kubernetes"`
}

type DestinationConfig struct {
	Kind    string `json:"kind"` // e.g. "structurednotes"
	BaseURL string `json:"base_url"`
}

// Defaults returns the conservative defaults named throughout spec §4-§6.
func Defaults() *Config {
	c := &Config{}
	c.Postgres.MaxConns = 10
	c.ObjectStore.Backend = "s3"
	c.OCR.Timeout = 60 * time.Second
	c.Quota.FreeTierLimit = 30
	c.Quota.HardCapPendingQuota = 100
	c.RateLimit.UploadsPerMinute = 10
	c.WorkQueue.PollInterval = 5 * time.Second
	c.WorkQueue.PollIntervalMax = 30 * time.Second
	c.WorkQueue.LeaseDuration = 60 * time.Second
	c.WorkQueue.MaxRetries = 5
	c.WorkQueue.ClaimBatchSize = 16
	c.HTTP.ListenAddr = ":8080"
	c.HTTP.DestTimeout = 30 * time.Second
	c.HTTP.ObjStoreTimeout = 30 * time.Second
	c.Logging.Level = "info"
	c.Kubernetes.Namespace = "default"
	c.Kubernetes.FleetLabelSelector = "app=rmirror-cloud-worker"
	return c
}

// gco is the global config owner: the one process-wide mutable singleton
// sanctioned by spec §9 ("no hidden singletons participate in correctness" —
// this one is explicit, initialized once, and every read goes through Get).
var gco atomic.Pointer[Config]

func init() {
	gco.Store(Defaults())
}

func Get() *Config { return gco.Load() }

// Load reads a JSON config file over the defaults and installs it as the
// new global config. Fields absent from the file keep their default value
// because defaults are the decode target.
func Load(path string) (*Config, error) {
	c := Defaults()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	gco.Store(c)
	return c, nil
}

// Set installs cfg directly, bypassing file load — used by tests.
func Set(cfg *Config) { gco.Store(cfg) }
