package engine

import "fmt"

// ConnectivityError reports a failed read from the source or target
// database while rows were being compared.
type ConnectivityError struct {
	Table string
	Op    string
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s (table: %s): %v", e.Op, e.Table, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ConstraintProbeError reports a failed unique index collision probe.
type ConstraintProbeError struct {
	Table string
	Index string
	Err   error
}

func (e *ConstraintProbeError) Error() string {
	return fmt.Sprintf("failed to probe unique index %s on %s: %v", e.Index, e.Table, e.Err)
}

func (e *ConstraintProbeError) Unwrap() error { return e.Err }
