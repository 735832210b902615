package storage

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the terminal state of one transaction flow attempt.
type AttemptStatus string

const (
	AttemptStatusSimulated        AttemptStatus = "simulated"
	AttemptStatusSimulationFailed AttemptStatus = "simulation_failed"
	AttemptStatusConfirmed        AttemptStatus = "confirmed"
	AttemptStatusExpired          AttemptStatus = "expired"
	AttemptStatusRejected         AttemptStatus = "rejected"
	AttemptStatusFailed           AttemptStatus = "failed"
)

// AttemptModel records one resolve, simulate, send cycle.
type AttemptModel struct {
	ID            string        `json:"id" bson:"_id,omitempty" db:"id" yaml:"id"`
	Chain         string        `json:"chain" bson:"chain" db:"chain" yaml:"chain"`
	Cluster       string        `json:"cluster" bson:"cluster" db:"cluster" yaml:"cluster"`
	Program       string        `json:"program" bson:"program" db:"program" yaml:"program"`
	Instruction   string        `json:"instruction" bson:"instruction" db:"instruction" yaml:"instruction"`
	Wallet        string        `json:"wallet" bson:"wallet" db:"wallet" yaml:"wallet"`
	Signature     string        `json:"signature,omitempty" bson:"signature,omitempty" db:"signature" yaml:"signature,omitempty"`
	Status        AttemptStatus `json:"status" bson:"status" db:"status" yaml:"status"`
	ErrorCode     string        `json:"error_code,omitempty" bson:"error_code,omitempty" db:"error_code" yaml:"error_code,omitempty"`
	ErrorName     string        `json:"error_name,omitempty" bson:"error_name,omitempty" db:"error_name" yaml:"error_name,omitempty"`
	ErrorNumber   *uint32       `json:"error_number,omitempty" bson:"error_number,omitempty" db:"error_number" yaml:"error_number,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message" yaml:"error_message,omitempty"`
	Logs          []string      `json:"logs,omitempty" bson:"logs,omitempty" db:"logs" yaml:"logs,omitempty"`
	UnitsConsumed *uint64       `json:"units_consumed,omitempty" bson:"units_consumed,omitempty" db:"units_consumed" yaml:"units_consumed,omitempty"`
	DurationMs    int64         `json:"duration_ms" bson:"duration_ms" db:"duration_ms" yaml:"duration_ms"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at" db:"created_at" yaml:"created_at"`
}

// NewAttempt creates an attempt with a fresh id and creation time.
func NewAttempt(chain, cluster, program, instruction, wallet string) *AttemptModel {
	return &AttemptModel{
		ID:          uuid.NewString(),
		Chain:       chain,
		Cluster:     cluster,
		Program:     program,
		Instruction: instruction,
		Wallet:      wallet,
		CreatedAt:   time.Now().UTC(),
	}
}

// SelectionModel is the persisted active chain key.
type SelectionModel struct {
	Key       string    `json:"key" bson:"key" db:"key" yaml:"key"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at" yaml:"updated_at"`
}
