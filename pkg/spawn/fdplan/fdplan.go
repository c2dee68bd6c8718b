// Package fdplan plans how the three standard streams of a new process are
// wired before it executes its program.
//
// The input is a six-slot Table: a child-side and a parent-side descriptor
// for each of stdin, stdout and stderr. The child-side descriptor is
// duplicated onto the stream number; the parent-side descriptor belongs to
// the caller's end of a pipe and is closed in the child only. The zero Table
// binds every stream to itself and closes nothing, which is the same as
// inheriting the parent's streams. Tables that bind only some streams must
// start from NewTable.
package fdplan

import (
	"fmt"
	"slices"
	"syscall"
)

// Stream is one of the three standard streams.
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// Slot sentinels. Any other negative value is invalid.
const (
	// Unset leaves the stream inherited, or marks no parent-side descriptor.
	Unset = -1
	// Closed, in a child slot, closes the stream in the child.
	Closed = -2
)

// Table is [stdin_child, stdin_parent, stdout_child, stdout_parent,
// stderr_child, stderr_parent].
type Table [6]int

// NewTable returns a table with every slot Unset.
func NewTable() Table {
	return Table{Unset, Unset, Unset, Unset, Unset, Unset}
}

// inherit is what the zero Table stands for.
var inherit = Table{0, Unset, 1, Unset, 2, Unset}

func (t Table) resolve() Table {
	if t == (Table{}) {
		return inherit
	}
	return t
}

// Child returns the child-side slot of s.
func (t Table) Child(s Stream) int { return t[2*int(s)] }

// Parent returns the parent-side slot of s.
func (t Table) Parent(s Stream) int { return t[2*int(s)+1] }

// Bind sets both slots of s.
func (t *Table) Bind(s Stream, child, parent int) {
	t[2*int(s)] = child
	t[2*int(s)+1] = parent
}

// Validate reports the first slot holding an invalid negative value.
func (t Table) Validate() error {
	for i, fd := range t {
		if fd < Closed || (fd == Closed && i%2 == 1) {
			return fmt.Errorf("fdplan: %s %s slot holds %d: %w", Stream(i/2), side(i), fd, syscall.EBADF)
		}
	}
	return nil
}

func side(i int) string {
	if i%2 == 0 {
		return "child"
	}
	return "parent"
}

// Descriptors returns every distinct real descriptor in the table, sorted.
func (t Table) Descriptors() []int {
	var fds []int
	for _, fd := range t.resolve() {
		if fd >= 0 && !slices.Contains(fds, fd) {
			fds = append(fds, fd)
		}
	}
	slices.Sort(fds)
	return fds
}

// Op is the kind of a planned action.
type Op uint8

const (
	// OpDup2 duplicates Src onto Dst.
	OpDup2 Op = iota + 1
	// OpClose closes Dst.
	OpClose
	// OpInherit clears close-on-exec on Dst, which is already in place.
	OpInherit
)

func (o Op) String() string {
	switch o {
	case OpDup2:
		return "dup2"
	case OpClose:
		return "close"
	case OpInherit:
		return "inherit"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Action is one step of a plan.
type Action struct {
	Op  Op  `json:"op"`
	Src int `json:"src,omitempty"`
	Dst int `json:"dst"`
}

func (a Action) String() string {
	if a.Op == OpDup2 {
		return fmt.Sprintf("dup2(%d, %d)", a.Src, a.Dst)
	}
	return fmt.Sprintf("%s(%d)", a.Op, a.Dst)
}

// Plan orders the actions that realise t in a child process:
//
//  1. child sources in 0..2 that another stream would overwrite are moved
//     to scratch descriptors above everything in the table;
//  2. each child source is duplicated onto its stream number;
//  3. streams marked Closed are closed;
//  4. parent-side descriptors and child sources above 2 are closed;
//  5. scratch descriptors are closed.
//
// Descriptors 0..2 are never closed in step 4.
func Plan(t Table) ([]Action, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t = t.resolve()

	next := 3
	for _, fd := range t {
		if fd >= next {
			next = fd + 1
		}
	}

	var (
		actions []Action
		src     [3]int
		scratch = map[int]int{}
	)
	for s := Stdin; s <= Stderr; s++ {
		fd := t.Child(s)
		src[s] = fd
		if fd < 0 || fd > 2 || fd == int(s) {
			continue
		}
		if moved, ok := scratch[fd]; ok {
			src[s] = moved
			continue
		}
		actions = append(actions, Action{Op: OpDup2, Src: fd, Dst: next})
		scratch[fd] = next
		src[s] = next
		next++
	}

	for s := Stdin; s <= Stderr; s++ {
		switch fd := src[s]; {
		case fd == int(s):
			actions = append(actions, Action{Op: OpInherit, Dst: fd})
		case fd >= 0:
			actions = append(actions, Action{Op: OpDup2, Src: fd, Dst: int(s)})
		}
	}

	for s := Stdin; s <= Stderr; s++ {
		if t.Child(s) == Closed {
			actions = append(actions, Action{Op: OpClose, Dst: int(s)})
		}
	}

	var closed []int
	closeOnce := func(fd int) {
		if fd < 3 || slices.Contains(closed, fd) {
			return
		}
		closed = append(closed, fd)
		actions = append(actions, Action{Op: OpClose, Dst: fd})
	}
	for s := Stdin; s <= Stderr; s++ {
		closeOnce(t.Parent(s))
	}
	for s := Stdin; s <= Stderr; s++ {
		closeOnce(t.Child(s))
	}
	scratchFDs := make([]int, 0, len(scratch))
	for _, fd := range scratch {
		scratchFDs = append(scratchFDs, fd)
	}
	slices.Sort(scratchFDs)
	for _, fd := range scratchFDs {
		closeOnce(fd)
	}
	return actions, nil
}

// Ops performs the primitive descriptor operations of a plan.
type Ops interface {
	Dup2(src, dst int) error
	Close(fd int) error
	ClearCloseOnExec(fd int) error
}

// ActionError reports the action that failed.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string { return e.Action.String() + ": " + e.Err.Error() }
func (e *ActionError) Unwrap() error { return e.Err }

// Apply runs actions in order and stops at the first failure.
func Apply(actions []Action, ops Ops) error {
	for _, a := range actions {
		var err error
		switch a.Op {
		case OpDup2:
			err = ops.Dup2(a.Src, a.Dst)
		case OpClose:
			err = ops.Close(a.Dst)
		case OpInherit:
			err = ops.ClearCloseOnExec(a.Dst)
		default:
			err = syscall.EINVAL
		}
		if err != nil {
			return &ActionError{Action: a, Err: err}
		}
	}
	return nil
}

// FileTable expresses t declaratively as the descriptor table taken by
// syscall.ForkExec: entry i is the descriptor that becomes stream i, the
// parent's own stream for Unset, and ^uintptr(0) for Closed. Parent-side
// slots have no place in the table; callers keep them out of the child with
// close-on-exec.
func FileTable(t Table) []uintptr {
	t = t.resolve()
	files := make([]uintptr, 3)
	for s := Stdin; s <= Stderr; s++ {
		switch fd := t.Child(s); fd {
		case Closed:
			files[s] = ^uintptr(0)
		case Unset:
			files[s] = uintptr(s)
		default:
			files[s] = uintptr(fd)
		}
	}
	return files
}

// Remap renumbers the child-side descriptors of t onto base, base+1, ...
// in first-seen order and returns the new table together with the original
// descriptors, so that passing orig[k] as descriptor base+k to a new process
// makes the returned table valid there. Parent-side slots become Unset.
func Remap(t Table, base int) (Table, []int) {
	t = t.resolve()
	out := NewTable()
	var orig []int
	for s := Stdin; s <= Stderr; s++ {
		fd := t.Child(s)
		if fd < 0 {
			out.Bind(s, fd, Unset)
			continue
		}
		k := slices.Index(orig, fd)
		if k < 0 {
			orig = append(orig, fd)
			k = len(orig) - 1
		}
		out.Bind(s, base+k, Unset)
	}
	return out, orig
}
