package storage

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage layers a pgx pool over GormStorage. Bulk loads go
// through COPY and advisory locks pin a pooled connection.
type PostgresPoolStorage struct {
	*GormStorage
	pool *pgxpool.Pool

	mu       sync.Mutex
	held     map[int64]*pgxpool.Conn
	acquired int64
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/avoidedcost?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gs, err := NewGormStorage("postgres", dsn)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresPoolStorage{
		GormStorage: gs,
		pool:        pool,
		held:        make(map[int64]*pgxpool.Conn),
	}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.mu.Lock()
	for key, conn := range s.held {
		conn.Release()
		delete(s.held, key)
	}
	s.mu.Unlock()
	s.pool.Close()
	return s.GormStorage.Close()
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var elecCopyColumns = []string{
	"state", "utility", "region", "year", "quarter", "month", "hour_of_day", "hour_of_year",
	"energy", "losses", "ancillary_services", "capacity", "transmission", "distribution",
	"cap_and_trade", "ghg_adder", "ghg_rebalancing", "ghg_adder_rebalancing", "methane_leakage",
	"total", "marginal_ghg", "value_curve_name",
}

func (s *PostgresPoolStorage) InsertElecAvoidedCosts(ctx context.Context, rows []ElecAvoidedCost) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{TableElecAvCosts}, elecCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.State, r.Utility, r.Region, r.Year, r.Quarter, r.Month, r.HourOfDay, r.HourOfYear,
				r.Energy, r.Losses, r.AncillaryServices, r.Capacity, r.Transmission, r.Distribution,
				r.CapAndTrade, r.GHGAdder, r.GHGRebalancing, r.GHGAdderRebalancing, r.MethaneLeakage,
				r.Total, r.MarginalGHG, r.ValueCurveName,
			}, nil
		}))
	return err
}

var gasCopyColumns = []string{
	"state", "utility", "region", "year", "quarter", "month", "market", "t_d",
	"environment", "btm_methane", "upstream_methane", "total", "marginal_ghg", "value_curve_name",
}

func (s *PostgresPoolStorage) InsertGasAvoidedCosts(ctx context.Context, rows []GasAvoidedCost) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{TableGasAvCosts}, gasCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.State, r.Utility, r.Region, r.Year, r.Quarter, r.Month, r.Market, r.TD,
				r.Environment, r.BTMMethane, r.UpstreamMethane, r.Total, r.MarginalGHG, r.ValueCurveName,
			}, nil
		}))
	return err
}

var shapeCopyColumns = []string{
	"load_shape_name", "source", "state", "utility", "region", "quarter", "month",
	"hour_of_day", "hour_of_year", "value",
}

func (s *PostgresPoolStorage) InsertLoadShapeValues(ctx context.Context, rows []LoadShapeValue) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{TableElecLoadShape}, shapeCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.LoadShapeName, r.Source, r.State, r.Utility, r.Region, r.Quarter, r.Month,
				r.HourOfDay, r.HourOfYear, r.Value,
			}, nil
		}))
	return err
}

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[key]; ok {
		return false, nil
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	s.held[key] = conn
	return true, nil
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.mu.Lock()
	conn, ok := s.held[key]
	delete(s.held, key)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	defer conn.Release()
	var released bool
	err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released)
	return released, err
}

// PoolStats is a snapshot of the pgx pool, with AcquireDelta counting the
// acquires since the previous snapshot.
type PoolStats struct {
	Total        int32
	Idle         int32
	InUse        int32
	AcquireDelta int64
}

func (s *PostgresPoolStorage) PoolStats() PoolStats {
	stat := s.pool.Stat()
	s.mu.Lock()
	count := stat.AcquireCount()
	delta := count - s.acquired
	s.acquired = count
	s.mu.Unlock()
	return PoolStats{
		Total:        stat.TotalConns(),
		Idle:         stat.IdleConns(),
		InUse:        stat.AcquiredConns(),
		AcquireDelta: delta,
	}
}
