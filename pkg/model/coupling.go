package model

// Position locates one physical component inside the math-model domain:
// which subgrid it landed in, and its index within that subgrid's
// per-component-class array. Subgrid == -1 means the component is not
// reachable from any energised source ("isolated").
type Position struct {
	Subgrid int32
	Pos     Idx
}

var Unreachable = Position{Subgrid: -1, Pos: NotConnected}

// Branch3Position is a three-winding transformer's coupling: one subgrid
// and three math-branch positions, one per expanded two-winding leg.
type Branch3Position struct {
	Subgrid int32
	Pos     [3]Idx
}

// ComponentToMathCoupling is the global (not per-subgrid) coupling entity,
// produced by C6 from C5's subgrid assignment.
type ComponentToMathCoupling struct {
	Node    []Position
	Branch  []Position
	Branch3 []Branch3Position
	Shunt   []Position
	LoadGen []Position
	Source  []Position

	VoltageSensor []Position // position of the bus the sensor observes
	PowerSensor   []Position // position within the per-type array of the measured object
}
