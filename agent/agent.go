package agent

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gottino/rmirror-cloud/cmn/config"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

// Agent wires together the watcher, dedup cache, upload pool, token
// holder, and status surface into the single-process device agent of
// spec §4.9. It is single-host, single-user; concurrency is cooperative
// within this one process.
type Agent struct {
	cfg    *config.AgentConfig
	cache  *DedupCache
	watch  *Watcher
	pool   *Pool
	tokens *TokenHolder
	status *StatusStore
	stop   chan struct{}
}

func New(cfg *config.AgentConfig, stateDir string) (*Agent, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}

	cache, err := OpenDedupCache(filepath.Join(stateDir, "dedup.db"))
	if err != nil {
		return nil, err
	}

	watch, err := NewWatcher(cfg.SourceDirectory)
	if err != nil {
		cache.Close()
		return nil, err
	}

	tokens := NewTokenHolder(stateDir)
	if err := tokens.Load(); err != nil {
		nlog.Warnf("agent: %v", err)
	}

	status := NewStatusStore()
	status.SetAuthenticated(tokens.Authenticated())

	pool := NewPool(NewUploader(cfg.APIURL, tokens), cfg.BatchSize*4, cfg.BatchSize, status)

	return &Agent{
		cfg:    cfg,
		cache:  cache,
		watch:  watch,
		pool:   pool,
		tokens: tokens,
		status: status,
		stop:   make(chan struct{}),
	}, nil
}

// Run starts the watcher, the upload worker pool, and the dispatch loop
// that turns coalesced file-system Changes into deduplicated UploadItems.
// It blocks until Stop is called.
func (a *Agent) Run() error {
	if !a.cfg.WatchEnabled {
		nlog.Infoln("agent: watch disabled by config, idling")
		<-a.stop
		return nil
	}

	if err := a.watch.Start(); err != nil {
		return err
	}
	a.pool.Run(a.stop)
	a.status.SetConnected(true)

	for {
		select {
		case <-a.stop:
			return nil
		case change := <-a.watch.Changes():
			a.dispatch(change)
		}
	}
}

func (a *Agent) dispatch(change Change) {
	info, err := os.Stat(change.Path)
	if err != nil {
		return // file removed/renamed before we got to it
	}
	blob, err := os.ReadFile(change.Path)
	if err != nil {
		nlog.Warnf("agent: read %s: %v", change.Path, err)
		return
	}

	changed, hash, err := a.cache.Check(change.Path, info, blob)
	if err != nil {
		nlog.Errorf("agent: dedup check %s: %v", change.Path, err)
		return
	}
	if !changed {
		return
	}

	notebookUUID, pageUUID := pathToIDs(change.Path)
	if !a.cfg.AutoSync {
		return
	}
	if !a.cfg.SyncAllNotebooks && !contains(a.cfg.SelectedNotebooks, notebookUUID) {
		return
	}

	a.pool.Enqueue(UploadItem{
		Path:         change.Path,
		NotebookUUID: notebookUUID,
		PageUUID:     pageUUID,
		ContentHash:  hash,
		Blob:         blob,
	})
}

// pathToIDs derives (notebook_uuid, page_uuid) from the on-disk layout
// <source_directory>/<notebook_uuid>/<page_uuid>.rm, matching the
// convention described by spec §6 "On-disk / object-store conventions"
// mirrored client-side.
func pathToIDs(path string) (notebookUUID, pageUUID string) {
	dir, file := filepath.Split(path)
	pageUUID = file[:len(file)-len(filepath.Ext(file))]
	notebookUUID = filepath.Base(filepath.Clean(dir))
	return notebookUUID, pageUUID
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (a *Agent) Stop() {
	close(a.stop)
	a.watch.Close()
	a.cache.Close()
}

func (a *Agent) StatusHandler() http.Handler { return a.status.Handler() }
