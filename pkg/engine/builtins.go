package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/obstacled/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene script source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: create-box -> create_box
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
//  3. Line comments: ; and ;; become //, which is what zygomys expects.
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters; a lone
		// hyphen is the minus operator.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpTransform wraps a kernel.Transform so it can be returned from
// `config`/`translation` and consumed by the obstacle builtins.
type sexpTransform struct {
	t kernel.Transform
}

func (s *sexpTransform) SexpString(ps *zygo.PrintState) string {
	t := s.t
	return fmt.Sprintf("(config :x %g :y %g :z %g :roll %g :pitch %g :yaw %g)",
		t.X, t.Y, t.Z, t.Roll, t.Pitch, t.Yaw)
}
func (s *sexpTransform) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Trailing keyword with no value.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer rank. Floats are accepted only when whole.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false and the integers 0 and 1.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpInt:
		if v.Val == 0 || v.Val == 1 {
			return v.Val == 1, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toTransform extracts a placement built by `config` or `translation`.
func toTransform(s zygo.Sexp) (kernel.Transform, error) {
	if t, ok := s.(*sexpTransform); ok {
		return t.t, nil
	}
	return kernel.Transform{}, fmt.Errorf("expected config, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Transcript formatting
// ---------------------------------------------------------------------------

func quote(s string) string {
	return strconv.Quote(s)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func transformArg(t kernel.Transform) string {
	return (&sexpTransform{t: t}).SexpString(nil)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtin is a registry call bound to one evaluation's state.
type builtin func(st *evalState, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the scene builtins into a zygomys environment.
// Registry builtins go through st so that they share a context, a transcript
// and a stop flag.
//
// Source code must be preprocessed with preprocessSource() before evaluation
// so that :keyword tokens and kebab-case names are recognizable.
func registerBuiltins(env *zygo.Zlisp, st *evalState) {
	for name, fn := range builtins {
		fn := fn
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			return fn(st, args)
		})
	}
}

// builtins maps zygomys names (underscored) to implementations. Scripts use
// the kebab-case form.
var builtins = map[string]builtin{
	"create_polyhedron":     createPolyhedron,
	"create_box":            createBox,
	"add_point":             addPoint,
	"add_triangle":          addTriangle,
	"set_visible":           setVisible,
	"set_transparent":       setTransparent,
	"create_collision_list": createCollisionList,
	"add_to_collision_list": addToCollisionList,
	"add_obstacle":          addObstacle,
	"add_obstacle_config":   addObstacleConfig,
	"move_obstacle_config":  moveObstacleConfig,
	"set_obstacles":         setObstacles,
	"config":                configBuiltin,
	"translation":           translationBuiltin,
}

// nameArg checks the argument count and returns the leading name.
func nameArg(op string, args []zygo.Sexp, want int) (string, error) {
	if len(args) != want {
		return "", fmt.Errorf("%s requires %d arguments, got %d", op, want, len(args))
	}
	name, err := toString(args[0])
	if err != nil {
		return "", fmt.Errorf("%s: name: %w", op, err)
	}
	return name, nil
}

func floats(op string, args []zygo.Sexp, labels ...string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, labels[i], err)
		}
		out[i] = f
	}
	return out, nil
}

// -----------------------------------------------------------------------
// (create-polyhedron "name")
// -----------------------------------------------------------------------
func createPolyhedron(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "create-polyhedron"
	name, err := nameArg(op, args, 1)
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := st.target.CreatePolyhedron(st.ctx, name); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name)}})
	return &zygo.SexpStr{S: name}, nil
}

// -----------------------------------------------------------------------
// (create-box "name" 2.0 0.1 3.0)
// -----------------------------------------------------------------------
func createBox(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "create-box"
	name, err := nameArg(op, args, 4)
	if err != nil {
		return zygo.SexpNull, err
	}
	size, err := floats(op, args[1:], "x", "y", "z")
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := st.target.CreateBox(st.ctx, name, size[0], size[1], size[2]); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name), num(size[0]), num(size[1]), num(size[2])}})
	return &zygo.SexpStr{S: name}, nil
}

// -----------------------------------------------------------------------
// (add-point "name" x y z) => rank
// -----------------------------------------------------------------------
func addPoint(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "add-point"
	name, err := nameArg(op, args, 4)
	if err != nil {
		return zygo.SexpNull, err
	}
	p, err := floats(op, args[1:], "x", "y", "z")
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	rank, err := st.target.AddPoint(st.ctx, name, p[0], p[1], p[2])
	if err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name), num(p[0]), num(p[1]), num(p[2])}, Rank: &rank})
	return &zygo.SexpInt{Val: int64(rank)}, nil
}

// -----------------------------------------------------------------------
// (add-triangle "name" i1 i2 i3) => rank
// -----------------------------------------------------------------------
func addTriangle(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "add-triangle"
	name, err := nameArg(op, args, 4)
	if err != nil {
		return zygo.SexpNull, err
	}
	var idx [3]int
	for i, a := range args[1:] {
		v, err := toInt(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: index %d: %w", op, i+1, err)
		}
		idx[i] = v
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	rank, err := st.target.AddTriangle(st.ctx, name, idx[0], idx[1], idx[2])
	if err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name), strconv.Itoa(idx[0]), strconv.Itoa(idx[1]), strconv.Itoa(idx[2])}, Rank: &rank})
	return &zygo.SexpInt{Val: int64(rank)}, nil
}

// -----------------------------------------------------------------------
// (set-visible "name" false)
// -----------------------------------------------------------------------
func setVisible(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	return setFlag(st, args, "set-visible", st.target.SetVisible)
}

// -----------------------------------------------------------------------
// (set-transparent "name" true)
// -----------------------------------------------------------------------
func setTransparent(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	return setFlag(st, args, "set-transparent", st.target.SetTransparent)
}

func setFlag(st *evalState, args []zygo.Sexp, op string, set func(ctx context.Context, name string, v bool) error) (zygo.Sexp, error) {
	name, err := nameArg(op, args, 2)
	if err != nil {
		return zygo.SexpNull, err
	}
	v, err := toBool(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: flag: %w", op, err)
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := set(st.ctx, name, v); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name), strconv.FormatBool(v)}})
	return zygo.SexpNull, nil
}

// -----------------------------------------------------------------------
// (create-collision-list "name")
// -----------------------------------------------------------------------
func createCollisionList(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "create-collision-list"
	name, err := nameArg(op, args, 1)
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := st.target.CreateCollisionList(st.ctx, name); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name)}})
	return &zygo.SexpStr{S: name}, nil
}

// -----------------------------------------------------------------------
// (add-to-collision-list "list" "poly" "poly2" ...)
//
// Each polyhedron is appended with its own registry call, in order.
// -----------------------------------------------------------------------
func addToCollisionList(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "add-to-collision-list"
	if len(args) < 2 {
		return zygo.SexpNull, fmt.Errorf("%s requires a list name and at least one polyhedron", op)
	}
	list, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: list: %w", op, err)
	}
	polys := make([]string, 0, len(args)-1)
	for i, a := range args[1:] {
		p, err := toString(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: polyhedron %d: %w", op, i+1, err)
		}
		polys = append(polys, p)
	}
	for _, p := range polys {
		if err := st.begin(); err != nil {
			return zygo.SexpNull, err
		}
		if err := st.target.AddPolyToCollList(st.ctx, list, p); err != nil {
			return zygo.SexpNull, st.fail(err)
		}
		st.record(Call{Op: op, Args: []string{quote(list), quote(p)}})
	}
	return zygo.SexpNull, nil
}

// -----------------------------------------------------------------------
// (add-obstacle "name")
// -----------------------------------------------------------------------
func addObstacle(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "add-obstacle"
	name, err := nameArg(op, args, 1)
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := st.target.AddObstacle(st.ctx, name); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name)}})
	return zygo.SexpNull, nil
}

// -----------------------------------------------------------------------
// (add-obstacle-config "name" (translation 5 0 0))
// -----------------------------------------------------------------------
func addObstacleConfig(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	return placeObstacle(st, args, "add-obstacle-config", st.target.AddObstacleConfig)
}

// -----------------------------------------------------------------------
// (move-obstacle-config "name" (config :x 6 :yaw 1.57))
// -----------------------------------------------------------------------
func moveObstacleConfig(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	return placeObstacle(st, args, "move-obstacle-config", st.target.MoveObstacleConfig)
}

func placeObstacle(st *evalState, args []zygo.Sexp, op string, place func(ctx context.Context, name string, t kernel.Transform) error) (zygo.Sexp, error) {
	name, err := nameArg(op, args, 2)
	if err != nil {
		return zygo.SexpNull, err
	}
	t, err := toTransform(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := place(st.ctx, name, t); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name), transformArg(t)}})
	return zygo.SexpNull, nil
}

// -----------------------------------------------------------------------
// (set-obstacles "list")
// -----------------------------------------------------------------------
func setObstacles(st *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	const op = "set-obstacles"
	name, err := nameArg(op, args, 1)
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := st.begin(); err != nil {
		return zygo.SexpNull, err
	}
	if err := st.target.SetObstacles(st.ctx, name); err != nil {
		return zygo.SexpNull, st.fail(err)
	}
	st.record(Call{Op: op, Args: []string{quote(name)}})
	return zygo.SexpNull, nil
}

// -----------------------------------------------------------------------
// (config :x 1 :y 2 :z 3 :roll 0 :pitch 0 :yaw 1.57)
//
// Omitted components are zero. Angles are in radians.
// -----------------------------------------------------------------------
func configBuiltin(_ *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) > 0 {
		return zygo.SexpNull, fmt.Errorf("config takes only keyword arguments")
	}
	var t kernel.Transform
	fields := map[string]*float64{
		"x": &t.X, "y": &t.Y, "z": &t.Z,
		"roll": &t.Roll, "pitch": &t.Pitch, "yaw": &t.Yaw,
	}
	for k, v := range pa.kw {
		dst, ok := fields[k]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("config: unknown keyword :%s", k)
		}
		f, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("config: %s: %w", k, err)
		}
		*dst = f
	}
	return &sexpTransform{t: t}, nil
}

// -----------------------------------------------------------------------
// (translation 5 0 0)
// -----------------------------------------------------------------------
func translationBuiltin(_ *evalState, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 3 {
		return zygo.SexpNull, fmt.Errorf("translation requires exactly 3 arguments, got %d", len(args))
	}
	v, err := floats("translation", args, "x", "y", "z")
	if err != nil {
		return zygo.SexpNull, err
	}
	return &sexpTransform{t: kernel.Translation(v[0], v[1], v[2])}, nil
}
