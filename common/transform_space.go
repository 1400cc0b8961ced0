package common

// TransformSpace selects the frame a relative transform operation is expressed in.
type TransformSpace int

const (
	// TransformSpaceLocal applies the delta in the node's own frame.
	TransformSpaceLocal TransformSpace = iota
	// TransformSpaceParent applies the delta in the parent's frame.
	TransformSpaceParent
	// TransformSpaceWorld applies the delta in world space.
	TransformSpaceWorld
)

func (s TransformSpace) String() string {
	switch s {
	case TransformSpaceLocal:
		return "local"
	case TransformSpaceParent:
		return "parent"
	case TransformSpaceWorld:
		return "world"
	default:
		return "unknown"
	}
}
