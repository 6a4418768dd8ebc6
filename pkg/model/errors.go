package model

import "fmt"

// Construction-time errors abort the whole call immediately; solver errors
// propagate to the caller or, inside a batch, are captured per-scenario.

type ConflictIDError struct{ ID ID }

func (e *ConflictIDError) Error() string {
	return fmt.Sprintf("model: duplicate component id %d", e.ID)
}

type IDNotFoundError struct{ ID ID }

func (e *IDNotFoundError) Error() string {
	return fmt.Sprintf("model: id %d not found", e.ID)
}

type IDWrongTypeError struct {
	ID       ID
	Expected string
}

func (e *IDWrongTypeError) Error() string {
	return fmt.Sprintf("model: id %d is not of type %s", e.ID, e.Expected)
}

type ConflictVoltageError struct {
	FromID, ToID     ID
	FromURated, ToURated float64
}

func (e *ConflictVoltageError) Error() string {
	return fmt.Sprintf("model: branch %d-%d connects nodes with mismatched rated voltages (%g vs %g)",
		e.FromID, e.ToID, e.FromURated, e.ToURated)
}

type InvalidBranchError struct{ BranchID, NodeID ID }

func (e *InvalidBranchError) Error() string {
	return fmt.Sprintf("model: branch %d has both endpoints at node %d", e.BranchID, e.NodeID)
}

type InvalidTransformerClockError struct {
	TransformerID ID
	Clock         int
}

func (e *InvalidTransformerClockError) Error() string {
	return fmt.Sprintf("model: transformer %d has clock number %d inconsistent with winding types",
		e.TransformerID, e.Clock)
}

type InvalidMeasuredObjectError struct {
	SensorID   ID
	MeasuredID ID
}

func (e *InvalidMeasuredObjectError) Error() string {
	return fmt.Sprintf("model: power sensor %d placed on component %d of a type that forbids measurement",
		e.SensorID, e.MeasuredID)
}

// IterationDivergeError is raised by an iterative solver that exhausted
// MaxIter without satisfying ErrTol.
type IterationDivergeError struct {
	NIter  int
	MaxDev float64
	ErrTol float64
}

func (e *IterationDivergeError) Error() string {
	return fmt.Sprintf("model: iteration diverged after %d iterations: max_dev=%g > err_tol=%g",
		e.NIter, e.MaxDev, e.ErrTol)
}

type InvalidCalculationMethodError struct {
	Method CalculationMethod
}

func (e *InvalidCalculationMethodError) Error() string {
	return fmt.Sprintf("model: calculation method %d is not valid for this calculation type", e.Method)
}

// BatchCalculationError aggregates the per-scenario failures of a batch
// run, one entry per failed scenario index.
type BatchCalculationError struct {
	FailedScenarios []int
	Messages        []string
}

func (e *BatchCalculationError) Error() string {
	return fmt.Sprintf("model: %d scenario(s) failed: %v", len(e.FailedScenarios), e.Messages)
}

type UnknownAttributeNameError struct {
	Component, Attribute string
}

func (e *UnknownAttributeNameError) Error() string {
	return fmt.Sprintf("model: unknown attribute %q on component %q", e.Attribute, e.Component)
}

type MissingCaseForEnumError struct {
	Enum  string
	Value int
}

func (e *MissingCaseForEnumError) Error() string {
	return fmt.Sprintf("model: unhandled enum value %d for %s", e.Value, e.Enum)
}
