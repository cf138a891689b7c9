package destination

import (
	"context"
	"testing"

	"github.com/gottino/rmirror-cloud/domain"
	"github.com/gottino/rmirror-cloud/syncrecord"
)

type fakeRecords struct {
	rows map[string]*domain.SyncRecord
}

func newFakeRecords() *fakeRecords { return &fakeRecords{rows: map[string]*domain.SyncRecord{}} }

func key(user, page, dest string) string { return user + "/" + page + "/" + dest }

func (f *fakeRecords) Get(_ context.Context, user, page, dest string) (*domain.SyncRecord, error) {
	return f.rows[key(user, page, dest)], nil
}

func (f *fakeRecords) Insert(_ context.Context, rec *domain.SyncRecord) error {
	k := key(rec.UserID, rec.PageUUID, rec.Destination)
	if _, exists := f.rows[k]; exists {
		return syncrecord.ErrConflict
	}
	f.rows[k] = rec
	return nil
}

func (f *fakeRecords) UpdateContentHash(_ context.Context, user, page, dest, hash string) error {
	if r := f.rows[key(user, page, dest)]; r != nil {
		r.ContentHash = hash
	}
	return nil
}

func (f *fakeRecords) Delete(_ context.Context, user, page, dest string) error {
	delete(f.rows, key(user, page, dest))
	return nil
}

func (f *fakeRecords) FindByContentHash(_ context.Context, dest, hash string) (*domain.SyncRecord, error) {
	for _, r := range f.rows {
		if r.Destination == dest && r.ContentHash == hash {
			return r, nil
		}
	}
	return nil, nil
}

type fakeAdapter struct {
	createCalls int
	updateCalls int
	externalID  string
}

func (a *fakeAdapter) Name() string                       { return "fake" }
func (a *fakeAdapter) Capabilities() []Capability         { return []Capability{CapCreate, CapUpdate} }
func (a *fakeAdapter) ValidateConnection(context.Context) error { return nil }
func (a *fakeAdapter) CheckDuplicate(context.Context, string) (string, error) { return "", nil }

func (a *fakeAdapter) SyncItem(context.Context, Item) (Result, error) {
	a.createCalls++
	return Result{Status: StatusOK, ExternalID: a.externalID}, nil
}

func (a *fakeAdapter) UpdateItem(context.Context, string, Item) (Result, error) {
	a.updateCalls++
	return Result{Status: StatusOK, ExternalID: a.externalID}, nil
}

func (a *fakeAdapter) DeleteItem(context.Context, string) (Result, error) {
	return Result{Status: StatusOK}, nil
}

func TestSync_CreatesOnFirstSeen(t *testing.T) {
	records := newFakeRecords()
	o := NewOrchestrator(records)
	a := &fakeAdapter{externalID: "ext-1"}

	item := Item{UserID: "u1", PageUUID: "p1", ContentHash: "h1"}
	if err := o.Sync(context.Background(), a, item); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if a.createCalls != 1 {
		t.Fatalf("expected 1 create call, got %d", a.createCalls)
	}
	rec := records.rows[key("u1", "p1", "fake")]
	if rec == nil || rec.ExternalID != "ext-1" {
		t.Fatalf("expected inserted record with external id, got %+v", rec)
	}
}

func TestSync_NoopWhenHashUnchanged(t *testing.T) {
	records := newFakeRecords()
	records.rows[key("u1", "p1", "fake")] = &domain.SyncRecord{
		UserID: "u1", PageUUID: "p1", Destination: "fake", ExternalID: "ext-1", ContentHash: "h1",
	}
	o := NewOrchestrator(records)
	a := &fakeAdapter{externalID: "ext-1"}

	item := Item{UserID: "u1", PageUUID: "p1", ContentHash: "h1"}
	if err := o.Sync(context.Background(), a, item); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if a.createCalls != 0 || a.updateCalls != 0 {
		t.Fatalf("expected no destination calls, got create=%d update=%d", a.createCalls, a.updateCalls)
	}
}

func TestSync_UpdatesWhenHashChanged(t *testing.T) {
	records := newFakeRecords()
	records.rows[key("u1", "p1", "fake")] = &domain.SyncRecord{
		UserID: "u1", PageUUID: "p1", Destination: "fake", ExternalID: "ext-1", ContentHash: "h1",
	}
	o := NewOrchestrator(records)
	a := &fakeAdapter{externalID: "ext-1"}

	item := Item{UserID: "u1", PageUUID: "p1", ContentHash: "h2"}
	if err := o.Sync(context.Background(), a, item); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if a.updateCalls != 1 {
		t.Fatalf("expected 1 update call, got %d", a.updateCalls)
	}
	if records.rows[key("u1", "p1", "fake")].ContentHash != "h2" {
		t.Fatalf("expected content hash updated")
	}
}
