package obstacle

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the Registry wraps exactly one of
// these, so callers can test with errors.Is.
var (
	ErrDuplicateName              = errors.New("duplicate name")
	ErrNotFound                   = errors.New("not found")
	ErrGeometryConstructionFailed = errors.New("geometry construction failed")
	ErrInvalidArgument            = errors.New("invalid argument")
)

// Namespaces reported in Error.Namespace.
const (
	NamespacePolyhedron    = "polyhedron"
	NamespaceCollisionList = "collision list"
	NamespaceActiveSet     = "active set"
)

// Error carries the operation and the offending name alongside the failure
// kind.
type Error struct {
	Op        string
	Namespace string
	Name      string
	Err       error
}

func (e *Error) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s %q: %v", e.Op, e.Namespace, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func duplicate(op, ns, name string) error {
	return &Error{Op: op, Namespace: ns, Name: name, Err: ErrDuplicateName}
}

func notFound(op, ns, name string) error {
	return &Error{Op: op, Namespace: ns, Name: name, Err: ErrNotFound}
}

func invalid(op, name, msg string) error {
	return &Error{Op: op, Name: name, Err: fmt.Errorf("%w: %s", ErrInvalidArgument, msg)}
}

// geometryFailed wraps a kernel error so that both the kind and the kernel
// cause stay reachable through errors.Is.
func geometryFailed(op, name string, cause error) error {
	return &Error{
		Op:        op,
		Namespace: NamespacePolyhedron,
		Name:      name,
		Err:       fmt.Errorf("%w: %w", ErrGeometryConstructionFailed, cause),
	}
}
