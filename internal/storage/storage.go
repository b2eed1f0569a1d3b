package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Reference and run tables. Reset and count operations accept only these.
const (
	TableElecAvCosts   = "elec_av_costs"
	TableGasAvCosts    = "gas_av_costs"
	TableElecLoadShape = "elec_load_shape"
	TableProjectInfo   = "project_info"
	TableRunResults    = "run_results"
)

// Tables lists the tables that ResetTable and CountRows understand.
var Tables = []string{TableElecAvCosts, TableGasAvCosts, TableElecLoadShape, TableProjectInfo, TableRunResults}

// RequiredTables must hold data before a stored portfolio can be run.
var RequiredTables = []string{TableProjectInfo, TableElecAvCosts, TableGasAvCosts, TableElecLoadShape}

var ErrUnknownTable = errors.New("unknown table")

// CostFilter scopes an avoided-cost query. A non-empty ValueCurve is matched
// instead of Utility and Region. Gas queries ignore Region, and rows stored
// without a utility match any Utility.
type CostFilter struct {
	Utility    string
	Region     string
	ValueCurve string
}

func (f CostFilter) matchElec(r ElecAvoidedCost) bool {
	if f.ValueCurve != "" {
		return strings.EqualFold(r.ValueCurveName, f.ValueCurve)
	}
	return strings.EqualFold(r.Utility, f.Utility) && strings.EqualFold(r.Region, f.Region)
}

func (f CostFilter) matchGas(r GasAvoidedCost) bool {
	if f.ValueCurve != "" {
		return strings.EqualFold(r.ValueCurveName, f.ValueCurve)
	}
	return f.Utility == "" || r.Utility == "" || strings.EqualFold(r.Utility, f.Utility)
}

// Storage abstracts persistence for reference data, projects and results.
type Storage interface {
	// Avoided costs
	InsertElecAvoidedCosts(ctx context.Context, rows []ElecAvoidedCost) error
	InsertGasAvoidedCosts(ctx context.Context, rows []GasAvoidedCost) error
	ElecAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]ElecAvoidedCost, error)
	GasAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]GasAvoidedCost, error)

	// Load shapes
	InsertLoadShapeValues(ctx context.Context, rows []LoadShapeValue) error
	LoadShapeValues(ctx context.Context) ([]LoadShapeValue, error)
	LoadShapeNames(ctx context.Context) ([]string, error)

	// Projects
	UpsertProjects(ctx context.Context, ps []ProjectInfo) error
	ListProjects(ctx context.Context) ([]ProjectInfo, error)

	// Run results
	SaveRunResult(ctx context.Context, r RunResult) error
	GetRunResult(ctx context.Context, id string) (*RunResult, error)
	ListRunResults(ctx context.Context, limit int) ([]RunResult, error)

	// Batch progress
	SaveBatchProgress(ctx context.Context, p BatchProgress) error
	GetPendingBatchProjects(ctx context.Context, batchID string) ([]string, error)

	// Maintenance
	CountRows(ctx context.Context, table string) (int64, error)
	ResetTable(ctx context.Context, table string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Tokens
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Scheduled jobs and locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}

// EmptyTables returns the required tables that have no rows.
func EmptyTables(ctx context.Context, st Storage) ([]string, error) {
	var empty []string
	for _, t := range RequiredTables {
		n, err := st.CountRows(ctx, t)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			empty = append(empty, t)
		}
	}
	return empty, nil
}
