// Package domain holds the shared entity types from spec §3. Stores (quota,
// pagestore, syncrecord, workqueue) depend on these types; they don't
// depend on any store.
package domain

import "time"

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

type QuotaKind string

const QuotaOCRPages QuotaKind = "ocr_pages"

type Threshold string

const (
	ThresholdNone Threshold = "none"
	Threshold90   Threshold = "90"
	Threshold100  Threshold = "100"
)

// QuotaLedger mirrors §3 QuotaLedger(user, kind).
type QuotaLedger struct {
	UserID               string
	Kind                 QuotaKind
	Limit                int64 // -1 = unlimited
	Used                 int64
	PeriodStart          time.Time
	ResetAt              time.Time
	LastNotifiedThreshold Threshold
}

func (l *QuotaLedger) Unlimited() bool { return l.Limit < 0 }

func (l *QuotaLedger) Percent() float64 {
	if l.Unlimited() || l.Limit == 0 {
		return 0
	}
	return float64(l.Used) / float64(l.Limit) * 100
}

type QuotaSnapshot struct {
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit"`
	Percent     float64   `json:"percent"`
	ResetAt     time.Time `json:"reset_at"`
	IsExhausted bool      `json:"is_exhausted"`
	IsNearLimit bool      `json:"is_near_limit"`
}

// OCRStatus is the Page status machine from §4.5.
type OCRStatus string

const (
	StatusNotSynced   OCRStatus = "not_synced"
	StatusPending     OCRStatus = "pending"
	StatusCompleted   OCRStatus = "completed"
	StatusFailed      OCRStatus = "failed"
	StatusPendingQuota OCRStatus = "pending_quota"
)

// Notebook mirrors §3 Notebook(user, notebook_uuid).
type Notebook struct {
	UserID       string
	NotebookUUID string
	VisibleName  string
	ParentUUID   *string
	DocumentType string
	LastModified time.Time
}

// Page mirrors §3 Page(notebook, page_uuid).
type Page struct {
	UserID       string
	NotebookUUID string
	PageUUID     string
	PageNumber   int
	ContentHash  *string
	OCRStatus    OCRStatus
	OCRText      *string
	OCRConfidence *float64
	PDFKey       *string
	SourceKey    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type WorkKind string

const (
	WorkFull     WorkKind = "full"
	WorkMetadata WorkKind = "metadata"
)

type WorkStatus string

const (
	WorkQueued WorkStatus = "queued"
	WorkLeased WorkStatus = "leased"
	WorkDone   WorkStatus = "done"
	WorkFailed WorkStatus = "failed"
)

const DestinationAll = "all"

// ContainerCreationPriority is the fixed priority used for Phase-1
// container-creation leases (spec §4.6: "priority 0").
const ContainerCreationPriority = 0

const DefaultPagePriority = 10

// WorkItem mirrors §3 WorkItem.
type WorkItem struct {
	ID                 int64
	UserID             string
	Kind               WorkKind
	TargetRef          string // notebook_uuid or page_uuid
	ItemKind           string // "page" | "notebook_container" | "notebook_metadata"
	ContentHashSnapshot string
	Destinations       []string
	Priority           int
	Status             WorkStatus
	LeaseOwner         *string
	LeaseExpiresAt     *time.Time
	Attempts           int
	LastError          *string
	CreatedAt          time.Time
}

type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
	SyncRetry   SyncStatus = "retry"
)

// SyncRecord mirrors §3 SyncRecord(user, page_uuid, destination). ItemKind
// distinguishes a page record from a Phase-1 "notebook_container" record,
// both of which live in the same dedup table per spec §4.6.
type SyncRecord struct {
	UserID      string
	PageUUID    string // for item_kind=notebook_container, this holds the notebook_uuid
	ItemKind    string
	Destination string
	ExternalID  string
	ContentHash string
	Status      SyncStatus
	Error       *string
	RetryCount  int
	SyncedAt    time.Time
	Metadata    []byte // opaque destination-specific blob
}

// IntegrationConfig mirrors §3 IntegrationConfig(user, destination).
type IntegrationConfig struct {
	UserID        string
	Destination   string
	Enabled       bool
	EncryptedBlob []byte
	LastSyncedAt  *time.Time
	UsageCount    int64
}
