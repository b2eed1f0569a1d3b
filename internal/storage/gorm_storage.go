package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// insertBatchSize keeps multi-row inserts under SQLite's bound-variable limit.
const insertBatchSize = 1000

type GormStorage struct {
	db *gorm.DB

	lockMu sync.Mutex
	locks  map[int64]*sql.Conn
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres", "postgrespool":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db, locks: make(map[int64]*sql.Conn)}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&ElecAvoidedCost{},
		&GasAvoidedCost{},
		&LoadShapeValue{},
		&ProjectInfo{},
		&RunResult{},
		&BatchProgress{},
		&Setting{},
		&Token{},
		&CasbinRule{},
		&ScheduledJob{},
	)
}

// Avoided costs

func (s *GormStorage) InsertElecAvoidedCosts(ctx context.Context, rows []ElecAvoidedCost) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (s *GormStorage) InsertGasAvoidedCosts(ctx context.Context, rows []GasAvoidedCost) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (s *GormStorage) ElecAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]ElecAvoidedCost, error) {
	var rows []ElecAvoidedCost
	q := s.db.WithContext(ctx).Where("year BETWEEN ? AND ?", startYear, endYear)
	if f.ValueCurve != "" {
		q = q.Where("UPPER(value_curve_name) = UPPER(?)", f.ValueCurve)
	} else {
		q = q.Where("UPPER(utility) = UPPER(?) AND UPPER(region) = UPPER(?)", f.Utility, f.Region)
	}
	result := q.Order("year, hour_of_year").Find(&rows)
	return rows, result.Error
}

func (s *GormStorage) GasAvoidedCosts(ctx context.Context, f CostFilter, startYear, endYear int) ([]GasAvoidedCost, error) {
	var rows []GasAvoidedCost
	q := s.db.WithContext(ctx).Where("year BETWEEN ? AND ?", startYear, endYear)
	switch {
	case f.ValueCurve != "":
		q = q.Where("UPPER(value_curve_name) = UPPER(?)", f.ValueCurve)
	case f.Utility != "":
		q = q.Where("(utility IS NULL OR utility = '' OR UPPER(utility) = UPPER(?))", f.Utility)
	}
	result := q.Order("year, month").Find(&rows)
	return rows, result.Error
}

// Load shapes

func (s *GormStorage) InsertLoadShapeValues(ctx context.Context, rows []LoadShapeValue) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (s *GormStorage) LoadShapeValues(ctx context.Context) ([]LoadShapeValue, error) {
	var rows []LoadShapeValue
	result := s.db.WithContext(ctx).Order("load_shape_name, hour_of_year").Find(&rows)
	return rows, result.Error
}

func (s *GormStorage) LoadShapeNames(ctx context.Context) ([]string, error) {
	var names []string
	result := s.db.WithContext(ctx).Model(&LoadShapeValue{}).
		Distinct("load_shape_name").
		Order("load_shape_name").
		Pluck("load_shape_name", &names)
	return names, result.Error
}

// Projects

func (s *GormStorage) UpsertProjects(ctx context.Context, ps []ProjectInfo) error {
	if len(ps) == 0 {
		return nil
	}
	now := time.Now()
	for i := range ps {
		if ps[i].UpdatedAt.IsZero() {
			ps[i].UpdatedAt = now
		}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(ps, insertBatchSize).Error
}

func (s *GormStorage) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	var ps []ProjectInfo
	result := s.db.WithContext(ctx).Order("id").Find(&ps)
	return ps, result.Error
}

// Run results

func (s *GormStorage) SaveRunResult(ctx context.Context, r RunResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *GormStorage) GetRunResult(ctx context.Context, id string) (*RunResult, error) {
	var r RunResult
	result := s.db.WithContext(ctx).First(&r, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &r, nil
}

func (s *GormStorage) ListRunResults(ctx context.Context, limit int) ([]RunResult, error) {
	var rs []RunResult
	q := s.db.WithContext(ctx).
		Select("id", "source", "projects", "failures", "created_at").
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	result := q.Find(&rs)
	return rs, result.Error
}

// BatchProgress

func (s *GormStorage) SaveBatchProgress(ctx context.Context, progress BatchProgress) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "project_id"}},
		UpdateAll: true,
	}).Create(&progress).Error
}

func (s *GormStorage) GetPendingBatchProjects(ctx context.Context, batchID string) ([]string, error) {
	var ids []string
	result := s.db.WithContext(ctx).Model(&BatchProgress{}).
		Where("batch_id = ? AND status IN ?", batchID, []string{BatchPending, BatchFailed}).
		Order("project_id").
		Pluck("project_id", &ids)
	return ids, result.Error
}

// Maintenance

func tableModel(table string) (any, error) {
	switch table {
	case TableElecAvCosts:
		return &ElecAvoidedCost{}, nil
	case TableGasAvCosts:
		return &GasAvoidedCost{}, nil
	case TableElecLoadShape:
		return &LoadShapeValue{}, nil
	case TableProjectInfo:
		return &ProjectInfo{}, nil
	case TableRunResults:
		return &RunResult{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownTable, table)
}

func (s *GormStorage) CountRows(ctx context.Context, table string) (int64, error) {
	model, err := tableModel(table)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(model).Count(&n).Error
	return n, err
}

func (s *GormStorage) ResetTable(ctx context.Context, table string) error {
	model, err := tableModel(table)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	result := s.db.WithContext(ctx).First(&token, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &token, nil
}

func (s *GormStorage) ListTokens(ctx context.Context) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Order("created_at").Find(&tokens)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Order("id").Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	s.lockMu.Lock()
	for key, conn := range s.locks {
		conn.Close()
		delete(s.locks, key)
	}
	s.lockMu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

// AcquireAdvisoryLock takes a Postgres session lock. The lock lives on one
// pinned connection until ReleaseAdvisoryLock. SQLite runs a single
// instance, so the lock always succeeds there.
func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return true, nil
	}
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if _, held := s.locks[key]; held {
		return false, nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return false, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Close()
		return false, err
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	s.locks[key] = conn
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return true, nil
	}
	s.lockMu.Lock()
	conn, held := s.locks[key]
	delete(s.locks, key)
	s.lockMu.Unlock()
	if !held {
		return false, nil
	}
	defer conn.Close()
	var ok bool
	err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	return ok, err
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	job := newScheduledJob(name, started, dur, success, errMsg)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	result := s.db.WithContext(ctx).First(&job, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}
