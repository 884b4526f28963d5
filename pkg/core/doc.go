// Package core defines the shared language of the jointab system.
//
// This package contains:
//   - The column model (Table, Column, Value, ColumnType)
//   - Join parameters (JoinType, JoinPlan)
//   - The error taxonomy shared by the engine and its hosts
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
