package agent

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

// maxUploadRetries and backoff mirror spec §4.9: "retry with exponential
// backoff min(2^n, 60) seconds, up to 5 attempts".
const maxUploadRetries = 5

func uploadBackoff(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt))
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// UploadItem is one queued unit of work: a source path plus its current
// content hash, ready to POST to the ingestion endpoint.
type UploadItem struct {
	Path         string
	NotebookUUID string
	PageUUID     string
	ContentHash  string
	Blob         []byte
	Attempts     int
}

type uploadOutcome int

const (
	outcomeOK uploadOutcome = iota
	outcomeRetryable
	outcomeQuotaDeferred
	outcomePermanent
)

// Uploader is the fasthttp-backed transport client for the agent's single
// upload endpoint (spec SPEC_FULL.md §B: "Fast HTTP transport for
// uploads").
type Uploader struct {
	APIURL string
	Tokens *TokenHolder
	client *fasthttp.Client
}

func NewUploader(apiURL string, tokens *TokenHolder) *Uploader {
	return &Uploader{
		APIURL: apiURL,
		Tokens: tokens,
		client: &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

func (u *Uploader) upload(item UploadItem) (uploadOutcome, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(u.APIURL + "/v1/processing/rm-file")
	req.Header.Set("Authorization", "Bearer "+u.Tokens.Current())

	boundary := "rmirrorcloudagent"
	req.Header.SetContentType("multipart/form-data; boundary=" + boundary)
	req.SetBody(buildMultipart(boundary, item))

	if err := u.client.Do(req, resp); err != nil {
		return outcomeRetryable, err
	}

	switch status := resp.StatusCode(); {
	case status >= 200 && status < 300:
		// A quota-exhausted upload is accepted with 200 and a deferred status.
		if bytes.Contains(resp.Body(), []byte(`"accepted_deferred"`)) {
			return outcomeQuotaDeferred, nil
		}
		return outcomeOK, nil
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return outcomeRetryable, fmt.Errorf("upload status %d", status)
	case status == fasthttp.StatusPaymentRequired:
		return outcomeQuotaDeferred, nil
	default:
		return outcomePermanent, fmt.Errorf("upload status %d", status)
	}
}

func buildMultipart(boundary string, item UploadItem) []byte {
	var b []byte
	writeField := func(name, value string) {
		b = append(b, []byte("--"+boundary+"\r\n")...)
		b = append(b, []byte(fmt.Sprintf("Content-Disposition: form-data; name=%q\r\n\r\n", name))...)
		b = append(b, []byte(value+"\r\n")...)
	}
	writeField("notebook_uuid", item.NotebookUUID)
	writeField("page_uuid", item.PageUUID)

	b = append(b, []byte("--"+boundary+"\r\n")...)
	b = append(b, []byte(fmt.Sprintf("Content-Disposition: form-data; name=\"blob\"; filename=%q\r\n", item.Path))...)
	b = append(b, []byte("Content-Type: application/octet-stream\r\n\r\n")...)
	b = append(b, item.Blob...)
	b = append(b, []byte("\r\n--"+boundary+"--\r\n")...)
	return b
}

// Pool is the bounded worker pool draining the upload queue (spec §4.9:
// "single logical producer (watcher) to a bounded in-memory queue drained
// by a worker pool").
type Pool struct {
	uploader *Uploader
	queue    chan UploadItem
	status   *StatusStore
	workers  int
}

func NewPool(uploader *Uploader, queueDepth, workers int, status *StatusStore) *Pool {
	return &Pool{
		uploader: uploader,
		queue:    make(chan UploadItem, queueDepth),
		status:   status,
		workers:  workers,
	}
}

// Enqueue drops the item if the queue is full rather than blocking the
// watcher goroutine (bounded queue per spec §4.9).
func (p *Pool) Enqueue(item UploadItem) bool {
	select {
	case p.queue <- item:
		p.status.SetQueueDepth(len(p.queue))
		return true
	default:
		nlog.Warnf("agent: upload queue full, dropping %s", item.Path)
		return false
	}
}

func (p *Pool) Run(stop <-chan struct{}) {
	for i := 0; i < p.workers; i++ {
		go p.worker(stop)
	}
}

func (p *Pool) worker(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case item := <-p.queue:
			p.status.SetQueueDepth(len(p.queue))
			p.process(item, stop)
		}
	}
}

func (p *Pool) process(item UploadItem, stop <-chan struct{}) {
	for {
		outcome, err := p.uploader.upload(item)
		switch outcome {
		case outcomeOK:
			p.status.SetLastSyncAt(time.Now())
			return
		case outcomeQuotaDeferred:
			// spec §4.9: "mark the item deferred locally ... do not
			// re-enqueue (server has accepted the blob)."
			p.status.MarkDeferred(item.Path)
			return
		case outcomePermanent:
			nlog.Errorf("agent: permanent upload failure %s: %v", item.Path, err)
			return
		case outcomeRetryable:
			item.Attempts++
			if item.Attempts >= maxUploadRetries {
				nlog.Errorf("agent: giving up on %s after %d attempts: %v", item.Path, item.Attempts, err)
				return
			}
			select {
			case <-stop:
				return
			case <-time.After(uploadBackoff(item.Attempts)):
			}
		}
	}
}
