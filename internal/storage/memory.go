package storage

import (
	"complywatch/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps all records in process. Every conditional transition runs
// under one mutex, which gives the same atomicity the Postgres store gets from
// conditional UPDATEs. It suits single-node deployments and tests.
type MemoryStore struct {
	mu        sync.Mutex
	websites  map[string]*models.Website
	users     map[string]models.User
	snapshots map[string][]models.ComplianceSnapshot
	alerts    map[string][]models.AlertRecord
	alertKeys map[string]struct{}
	cooldowns map[string]time.Time
	digests   map[string]models.DigestStatus
}

// MemorySnapshot is the serialized form used by FileManager.
type MemorySnapshot struct {
	Websites  []models.Website                       `json:"websites"`
	Users     []models.User                          `json:"users"`
	Snapshots map[string][]models.ComplianceSnapshot `json:"snapshots"`
	Alerts    map[string][]models.AlertRecord        `json:"alerts"`
	Cooldowns map[string]time.Time                   `json:"cooldowns"`
	Digests   map[string]models.DigestStatus         `json:"digests"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		websites:  make(map[string]*models.Website),
		users:     make(map[string]models.User),
		snapshots: make(map[string][]models.ComplianceSnapshot),
		alerts:    make(map[string][]models.AlertRecord),
		alertKeys: make(map[string]struct{}),
		cooldowns: make(map[string]time.Time),
		digests:   make(map[string]models.DigestStatus),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyWebsite(w *models.Website) models.Website {
	out := *w
	out.LastScanAt = copyTime(w.LastScanAt)
	out.ScanClaimedAt = copyTime(w.ScanClaimedAt)
	return out
}

func (m *MemoryStore) PutWebsite(w models.Website) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := copyWebsite(&w)
	m.websites[w.ID] = &c
}

func (m *MemoryStore) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) ListMonitoredWebsites(_ context.Context) ([]models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Website, 0, len(m.websites))
	for _, w := range m.websites {
		if w.Monitored {
			out = append(out, copyWebsite(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetWebsite(_ context.Context, id string) (*models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.websites[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyWebsite(w)
	return &c, nil
}

func (m *MemoryStore) ListWebsitesByUser(_ context.Context, userID string) ([]models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Website
	for _, w := range m.websites {
		if w.UserID == userID {
			out = append(out, copyWebsite(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ClaimScan(_ context.Context, websiteID string, expected *time.Time, now time.Time, claimWindow time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.websites[websiteID]
	if !ok {
		return false, ErrNotFound
	}
	if !sameInstant(w.LastScanAt, expected) {
		return false, nil
	}
	if w.ScanClaimedAt != nil && w.ScanClaimedAt.After(now.Add(-claimWindow)) {
		return false, nil
	}
	w.LastScanAt = copyTime(&now)
	w.ScanClaimedAt = copyTime(&now)
	return true, nil
}

func (m *MemoryStore) ReleaseScan(_ context.Context, websiteID string, claimedAt time.Time, previous *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.websites[websiteID]
	if !ok {
		return ErrNotFound
	}
	if w.ScanClaimedAt == nil || !w.ScanClaimedAt.Equal(claimedAt) {
		return ErrConflict
	}
	w.LastScanAt = copyTime(previous)
	w.ScanClaimedAt = nil
	return nil
}

func (m *MemoryStore) AppendSnapshot(_ context.Context, snapshot models.ComplianceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.websites[snapshot.WebsiteID]; !ok {
		return ErrNotFound
	}
	list := append(m.snapshots[snapshot.WebsiteID], snapshot)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	m.snapshots[snapshot.WebsiteID] = list
	return nil
}

func (m *MemoryStore) LatestSnapshotBefore(_ context.Context, websiteID string, before time.Time) (*models.ComplianceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.snapshots[websiteID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].CreatedAt.Before(before) {
			s := list[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, websiteID string, from, to time.Time) ([]models.ComplianceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ComplianceSnapshot
	for _, s := range m.snapshots[websiteID] {
		if s.CreatedAt.After(from) && !s.CreatedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) LastAlertAt(_ context.Context, websiteID string, category models.AlertCategory) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.cooldowns[cooldownKey(websiteID, category)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MemoryStore) RecordAlert(_ context.Context, record models.AlertRecord, expected *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.WebsiteID + "|" + record.SnapshotID
	if _, ok := m.alertKeys[key]; ok {
		return ErrDuplicate
	}

	if !record.Suppressed {
		ck := cooldownKey(record.WebsiteID, record.Category)
		var current *time.Time
		if t, ok := m.cooldowns[ck]; ok {
			current = &t
		}
		if !sameInstant(current, expected) {
			return ErrConflict
		}
		m.cooldowns[ck] = record.CreatedAt
	}

	m.alertKeys[key] = struct{}{}
	m.alerts[record.WebsiteID] = append(m.alerts[record.WebsiteID], record)
	return nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, websiteID string, from, to time.Time) ([]models.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AlertRecord
	for _, a := range m.alerts[websiteID] {
		if (from.IsZero() || a.CreatedAt.After(from)) && !a.CreatedAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryStore) AcknowledgeAlert(_ context.Context, alertID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for websiteID, list := range m.alerts {
		for i := range list {
			if list[i].ID == alertID {
				m.alerts[websiteID][i].Acknowledged = true
				return websiteID, nil
			}
		}
	}
	return "", ErrNotFound
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) ClaimDigest(_ context.Context, userID string, windowStart time.Time, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := digestKey(userID, windowStart)
	if _, ok := m.digests[key]; ok {
		return false, nil
	}
	m.digests[key] = models.DigestProcessing
	return true, nil
}

func (m *MemoryStore) CompleteDigest(_ context.Context, userID string, windowStart time.Time, status models.DigestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := digestKey(userID, windowStart)
	if _, ok := m.digests[key]; !ok {
		return ErrNotFound
	}
	m.digests[key] = status
	return nil
}

func (m *MemoryStore) ReleaseDigest(_ context.Context, userID string, windowStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.digests, digestKey(userID, windowStart))
	return nil
}

func (m *MemoryStore) DigestStatus(userID string, windowStart time.Time) (models.DigestStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.digests[digestKey(userID, windowStart)]
	return s, ok
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) Snapshot() *MemorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &MemorySnapshot{
		Snapshots: make(map[string][]models.ComplianceSnapshot, len(m.snapshots)),
		Alerts:    make(map[string][]models.AlertRecord, len(m.alerts)),
		Cooldowns: make(map[string]time.Time, len(m.cooldowns)),
		Digests:   make(map[string]models.DigestStatus, len(m.digests)),
	}
	for _, w := range m.websites {
		snap.Websites = append(snap.Websites, copyWebsite(w))
	}
	sort.Slice(snap.Websites, func(i, j int) bool { return snap.Websites[i].ID < snap.Websites[j].ID })
	for _, u := range m.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	for k, v := range m.snapshots {
		snap.Snapshots[k] = append([]models.ComplianceSnapshot(nil), v...)
	}
	for k, v := range m.alerts {
		snap.Alerts[k] = append([]models.AlertRecord(nil), v...)
	}
	for k, v := range m.cooldowns {
		snap.Cooldowns[k] = v
	}
	for k, v := range m.digests {
		snap.Digests[k] = v
	}
	return snap
}

// Load replaces the store contents with snap.
func (m *MemoryStore) Load(snap *MemorySnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	fresh := NewMemoryStore()
	for i := range snap.Websites {
		w := copyWebsite(&snap.Websites[i])
		fresh.websites[w.ID] = &w
	}
	for _, u := range snap.Users {
		fresh.users[u.ID] = u
	}
	for k, v := range snap.Snapshots {
		fresh.snapshots[k] = append([]models.ComplianceSnapshot(nil), v...)
	}
	for k, v := range snap.Alerts {
		fresh.alerts[k] = append([]models.AlertRecord(nil), v...)
		for _, a := range v {
			fresh.alertKeys[a.WebsiteID+"|"+a.SnapshotID] = struct{}{}
		}
	}
	for k, v := range snap.Cooldowns {
		fresh.cooldowns[k] = v
	}
	for k, v := range snap.Digests {
		fresh.digests[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.websites = fresh.websites
	m.users = fresh.users
	m.snapshots = fresh.snapshots
	m.alerts = fresh.alerts
	m.alertKeys = fresh.alertKeys
	m.cooldowns = fresh.cooldowns
	m.digests = fresh.digests
	return nil
}
