package storage

import "time"

// ElecAvoidedCost is one hour of electric avoided costs for a utility and
// climate zone.
type ElecAvoidedCost struct {
	ID                  uint    `json:"-" gorm:"primaryKey;column:id" csv:"-"`
	State               string  `json:"state" gorm:"column:state" csv:"state"`
	Utility             string  `json:"utility" gorm:"column:utility;index:idx_elec_av_costs_lookup,priority:1" csv:"utility"`
	Region              string  `json:"region" gorm:"column:region;index:idx_elec_av_costs_lookup,priority:2" csv:"region"`
	Year                int     `json:"year" gorm:"column:year;index:idx_elec_av_costs_lookup,priority:3" csv:"year"`
	Quarter             int     `json:"quarter" gorm:"column:quarter" csv:"quarter"`
	Month               int     `json:"month" gorm:"column:month" csv:"month"`
	HourOfDay           int     `json:"hour_of_day" gorm:"column:hour_of_day" csv:"hour_of_day"`
	HourOfYear          int     `json:"hour_of_year" gorm:"column:hour_of_year" csv:"hour_of_year"`
	Energy              float64 `json:"energy" gorm:"column:energy" csv:"energy"`
	Losses              float64 `json:"losses" gorm:"column:losses" csv:"losses"`
	AncillaryServices   float64 `json:"ancillary_services" gorm:"column:ancillary_services" csv:"ancillary_services"`
	Capacity            float64 `json:"capacity" gorm:"column:capacity" csv:"capacity"`
	Transmission        float64 `json:"transmission" gorm:"column:transmission" csv:"transmission"`
	Distribution        float64 `json:"distribution" gorm:"column:distribution" csv:"distribution"`
	CapAndTrade         float64 `json:"cap_and_trade" gorm:"column:cap_and_trade" csv:"cap_and_trade"`
	GHGAdder            float64 `json:"ghg_adder" gorm:"column:ghg_adder" csv:"ghg_adder"`
	GHGRebalancing      float64 `json:"ghg_rebalancing" gorm:"column:ghg_rebalancing" csv:"ghg_rebalancing"`
	GHGAdderRebalancing float64 `json:"ghg_adder_rebalancing" gorm:"column:ghg_adder_rebalancing" csv:"ghg_adder_rebalancing"`
	MethaneLeakage      float64 `json:"methane_leakage" gorm:"column:methane_leakage" csv:"methane_leakage"`
	Total               float64 `json:"total" gorm:"column:total" csv:"total"`
	MarginalGHG         float64 `json:"marginal_ghg" gorm:"column:marginal_ghg" csv:"marginal_ghg"`
	ValueCurveName      string  `json:"value_curve_name" gorm:"column:value_curve_name" csv:"value_curve_name"`
}

func (ElecAvoidedCost) TableName() string { return TableElecAvCosts }

// GasAvoidedCost is one month of gas avoided costs.
type GasAvoidedCost struct {
	ID              uint    `json:"-" gorm:"primaryKey;column:id" csv:"-"`
	State           string  `json:"state" gorm:"column:state" csv:"state"`
	Utility         string  `json:"utility" gorm:"column:utility" csv:"utility"`
	Region          string  `json:"region" gorm:"column:region" csv:"region"`
	Year            int     `json:"year" gorm:"column:year;index:idx_gas_av_costs_year" csv:"year"`
	Quarter         int     `json:"quarter" gorm:"column:quarter" csv:"quarter"`
	Month           int     `json:"month" gorm:"column:month" csv:"month"`
	Market          float64 `json:"market" gorm:"column:market" csv:"market"`
	TD              float64 `json:"t_d" gorm:"column:t_d" csv:"t_d"`
	Environment     float64 `json:"environment" gorm:"column:environment" csv:"environment"`
	BTMMethane      float64 `json:"btm_methane" gorm:"column:btm_methane" csv:"btm_methane"`
	UpstreamMethane float64 `json:"upstream_methane" gorm:"column:upstream_methane" csv:"upstream_methane"`
	Total           float64 `json:"total" gorm:"column:total" csv:"total"`
	MarginalGHG     float64 `json:"marginal_ghg" gorm:"column:marginal_ghg" csv:"marginal_ghg"`
	ValueCurveName  string  `json:"value_curve_name" gorm:"column:value_curve_name" csv:"value_curve_name"`
}

func (GasAvoidedCost) TableName() string { return TableGasAvCosts }

// LoadShapeValue is the weight of one hour of one named load shape.
type LoadShapeValue struct {
	ID            uint    `json:"-" gorm:"primaryKey;column:id"`
	LoadShapeName string  `json:"load_shape_name" gorm:"column:load_shape_name;index:idx_elec_load_shape_name"`
	Source        string  `json:"source" gorm:"column:source"`
	State         string  `json:"state" gorm:"column:state"`
	Utility       string  `json:"utility" gorm:"column:utility"`
	Region        string  `json:"region" gorm:"column:region"`
	Quarter       int     `json:"quarter" gorm:"column:quarter"`
	Month         int     `json:"month" gorm:"column:month"`
	HourOfDay     int     `json:"hour_of_day" gorm:"column:hour_of_day"`
	HourOfYear    int     `json:"hour_of_year" gorm:"column:hour_of_year"`
	Value         float64 `json:"value" gorm:"column:value"`
}

func (LoadShapeValue) TableName() string { return TableElecLoadShape }

// ProjectInfo is a stored project, recalculated by the scheduled worker.
type ProjectInfo struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	StartYear      int       `json:"start_year" gorm:"column:start_year"`
	StartQuarter   int       `json:"start_quarter" gorm:"column:start_quarter"`
	Utility        string    `json:"utility" gorm:"column:utility"`
	ClimateZone    string    `json:"climate_zone" gorm:"column:climate_zone"`
	MWhSavings     float64   `json:"mwh_savings" gorm:"column:mwh_savings"`
	LoadShape      string    `json:"load_shape" gorm:"column:load_shape"`
	ThermsSavings  float64   `json:"therms_savings" gorm:"column:therms_savings"`
	ThermsProfile  string    `json:"therms_profile" gorm:"column:therms_profile"`
	Units          float64   `json:"units" gorm:"column:units"`
	EUL            int       `json:"eul" gorm:"column:eul"`
	NTG            float64   `json:"ntg" gorm:"column:ntg"`
	DiscountRate   float64   `json:"discount_rate" gorm:"column:discount_rate"`
	Admin          float64   `json:"admin" gorm:"column:admin"`
	Measure        float64   `json:"measure" gorm:"column:measure"`
	Incentive      float64   `json:"incentive" gorm:"column:incentive"`
	ValueCurveName string    `json:"value_curve_name" gorm:"column:value_curve_name"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (ProjectInfo) TableName() string { return TableProjectInfo }

// RunResult stores a computed portfolio as a JSON payload.
type RunResult struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Source    string    `json:"source" gorm:"column:source"`
	Projects  int       `json:"projects" gorm:"column:projects"`
	Failures  int       `json:"failures" gorm:"column:failures"`
	Payload   []byte    `json:"payload" gorm:"column:payload"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index:idx_run_results_created"`
}

func (RunResult) TableName() string { return TableRunResults }

// BatchProgress tracks one project of a scheduled recalculation so an
// interrupted batch can resume where it stopped.
type BatchProgress struct {
	BatchID      string     `json:"batch_id" gorm:"primaryKey;column:batch_id"`
	ProjectID    string     `json:"project_id" gorm:"primaryKey;column:project_id"`
	Status       string     `json:"status" gorm:"column:status"`
	StartedAt    *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"column:error_message"`
}

func (BatchProgress) TableName() string { return "batch_progress" }

// BatchProgress statuses.
const (
	BatchPending   = "pending"
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
)

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash;uniqueIndex"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

func (Token) TableName() string { return "api_tokens" }

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

func (CasbinRule) TableName() string { return "casbin_rules" }

type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error" gorm:"column:last_error"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }
