package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// one-shot CLI runs from CSV files.
type MemoryStorage struct {
	mu            sync.RWMutex
	elec          []ElecAvoidedCost
	gas           []GasAvoidedCost
	shapes        []LoadShapeValue
	projects      map[string]ProjectInfo
	runs          map[string]RunResult
	batchProgress map[string]BatchProgress
	settings      map[string]string
	tokens        map[string]Token
	rules         []CasbinRule
	jobs          map[string]ScheduledJob
	locks         map[int64]bool
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		projects:      make(map[string]ProjectInfo),
		runs:          make(map[string]RunResult),
		batchProgress: make(map[string]BatchProgress),
		settings:      make(map[string]string),
		tokens:        make(map[string]Token),
		jobs:          make(map[string]ScheduledJob),
		locks:         make(map[int64]bool),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Avoided costs

func (m *MemoryStorage) InsertElecAvoidedCosts(ctx context.Context, rows []ElecAvoidedCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elec = append(m.elec, rows...)
	return nil
}

func (m *MemoryStorage) InsertGasAvoidedCosts(ctx context.Context, rows []GasAvoidedCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gas = append(m.gas, rows...)
	return nil
}

func (m *MemoryStorage) ElecAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]ElecAvoidedCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ElecAvoidedCost
	for _, r := range m.elec {
		if !f.matchElec(r) {
			continue
		}
		if r.Year < startYear || r.Year > endYear {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].HourOfYear < out[j].HourOfYear
	})
	return out, nil
}

func (m *MemoryStorage) GasAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]GasAvoidedCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GasAvoidedCost
	for _, r := range m.gas {
		if f.matchGas(r) && r.Year >= startYear && r.Year <= endYear {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// Load shapes

func (m *MemoryStorage) InsertLoadShapeValues(ctx context.Context, rows []LoadShapeValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shapes = append(m.shapes, rows...)
	return nil
}

func (m *MemoryStorage) LoadShapeValues(ctx context.Context) ([]LoadShapeValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LoadShapeValue, len(m.shapes))
	copy(out, m.shapes)
	return out, nil
}

func (m *MemoryStorage) LoadShapeNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, v := range m.shapes {
		if !seen[v.LoadShapeName] {
			seen[v.LoadShapeName] = true
			out = append(out, v.LoadShapeName)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Projects

func (m *MemoryStorage) UpsertProjects(ctx context.Context, ps []ProjectInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = time.Now()
		}
		m.projects[p.ID] = p
	}
	return nil
}

func (m *MemoryStorage) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProjectInfo, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Run results

func (m *MemoryStorage) SaveRunResult(ctx context.Context, r RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.runs[r.ID] = r
	return nil
}

func (m *MemoryStorage) GetRunResult(ctx context.Context, id string) (*RunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (m *MemoryStorage) ListRunResults(ctx context.Context, limit int) ([]RunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunResult, 0, len(m.runs))
	for _, r := range m.runs {
		r.Payload = nil
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Batch progress

func (m *MemoryStorage) SaveBatchProgress(ctx context.Context, p BatchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchProgress[p.BatchID+"/"+p.ProjectID] = p
	return nil
}

func (m *MemoryStorage) GetPendingBatchProjects(ctx context.Context, batchID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, p := range m.batchProgress {
		if p.BatchID == batchID && (p.Status == BatchPending || p.Status == BatchFailed) {
			out = append(out, p.ProjectID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Maintenance

func (m *MemoryStorage) CountRows(ctx context.Context, table string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch table {
	case TableElecAvCosts:
		return int64(len(m.elec)), nil
	case TableGasAvCosts:
		return int64(len(m.gas)), nil
	case TableElecLoadShape:
		return int64(len(m.shapes)), nil
	case TableProjectInfo:
		return int64(len(m.projects)), nil
	case TableRunResults:
		return int64(len(m.runs)), nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownTable, table)
}

func (m *MemoryStorage) ResetTable(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch table {
	case TableElecAvCosts:
		m.elec = nil
	case TableGasAvCosts:
		m.gas = nil
	case TableElecLoadShape:
		m.shapes = nil
	case TableProjectInfo:
		m.projects = make(map[string]ProjectInfo)
	case TableRunResults:
		m.runs = make(map[string]RunResult)
	default:
		return fmt.Errorf("%w %q", ErrUnknownTable, table)
	}
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = uint(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = 0
	kept := m.rules[:0]
	for _, r := range m.rules {
		cmp := r
		cmp.ID = 0
		if cmp == rule {
			continue
		}
		kept = append(kept, r)
	}
	m.rules = kept
	return nil
}

// Scheduled jobs & locking

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.locks[key]
	delete(m.locks, key)
	return held, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = newScheduledJob(name, started, dur, success, errMsg)
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func newScheduledJob(name string, started time.Time, dur time.Duration, success bool, errMsg string) ScheduledJob {
	status := 0
	if success {
		status = 1
	}
	return ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
}
