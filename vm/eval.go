package vm

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Evaluation errors
// ---------------------------------------------------------------------------

var (
	ErrEvalOnAtom      = errors.New("toplevel expression is not a [subject formula] cell")
	ErrAtomicFormula   = errors.New("formula is an atom")
	ErrNotAnOpcode     = errors.New("formula head is not a small atom")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrBadArgument     = errors.New("malformed opcode argument")
	ErrBadCondition    = errors.New("if condition is not 0 or 1")
	ErrBadRandomLength = errors.New("random length is not a usable atom")
	ErrBudgetExceeded  = errors.New("evaluation budget exceeded")
	ErrEntropyFailed   = errors.New("entropy source failed")
)

// maxRandomBytes caps a single opcode-15 draw.
const maxRandomBytes = 1 << 20

// ---------------------------------------------------------------------------
// Interp
// ---------------------------------------------------------------------------

// Interp evaluates formulas against subjects. Each Interp owns its memo
// tables and entropy source; those are its only mutable state, so one
// Interp per goroutine needs no locking beyond what the Memo provides.
type Interp struct {
	memo    Memo
	entropy io.Reader
	budget  int64 // per-call reduction budget, 0 = unlimited
}

// Option configures an Interp.
type Option func(*Interp)

// WithMemo substitutes the memo tables behind opcodes 11-14.
func WithMemo(m Memo) Option {
	return func(in *Interp) { in.memo = m }
}

// WithEntropy substitutes the byte source behind opcode 15.
func WithEntropy(r io.Reader) Option {
	return func(in *Interp) { in.entropy = r }
}

// WithBudget caps the work of a single Eval call, measured in reductions
// plus per-node charges for hashing and equality. Zero means unlimited.
func WithBudget(n int64) Option {
	return func(in *Interp) { in.budget = n }
}

// NewInterp creates an evaluator with unbounded in-memory memo tables and
// OS entropy.
func NewInterp(opts ...Option) *Interp {
	in := &Interp{
		memo:    NewMemoTable(),
		entropy: rand.Reader,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Memo returns the evaluator's memo tables.
func (in *Interp) Memo() Memo {
	return in.memo
}

// Eval evaluates *expr. The expression must be a [subject formula] cell.
func (in *Interp) Eval(expr *Noun) (*Noun, error) {
	return in.EvalContext(context.Background(), expr)
}

// EvalContext is Eval with a cancellation context, polled before each
// reduction. A cancelled evaluation produces no result; memo entries
// stored before the cancellation persist.
func (in *Interp) EvalContext(ctx context.Context, expr *Noun) (*Noun, error) {
	subject, formula, ok := expr.AsCell()
	if !ok {
		return nil, ErrEvalOnAtom
	}
	c := computation{in: in, ctx: ctx, remaining: in.budget, limited: in.budget > 0}
	return c.eval(subject, formula)
}

// Eval evaluates *expr with a fresh single-use evaluator.
func Eval(expr *Noun) (*Noun, error) {
	return NewInterp().Eval(expr)
}

// ---------------------------------------------------------------------------
// Computation: one Eval call's budget and cancellation state
// ---------------------------------------------------------------------------

type computation struct {
	in        *Interp
	ctx       context.Context
	remaining int64
	limited   bool
}

func (c *computation) incur(n int64) error {
	if !c.limited {
		return nil
	}
	if c.remaining < n {
		return ErrBudgetExceeded
	}
	c.remaining -= n
	return nil
}

// eval reduces *[subject formula]. Opcodes 2, 6, 7, 8 and 9 re-enter the
// loop rather than the function, so loops written through those edges run
// in constant Go stack. Autocons and operand evaluation recurse.
func (c *computation) eval(subject, formula *Noun) (*Noun, error) {
	for {
		if err := c.ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.incur(1); err != nil {
			return nil, err
		}

		op, arg, ok := formula.AsCell()
		if !ok {
			return nil, ErrAtomicFormula
		}
		if op.IsCell() {
			// Autocons: both halves are formulas over the same subject.
			left, err := c.eval(subject, op)
			if err != nil {
				return nil, err
			}
			right, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			return Cell(left, right), nil
		}

		opcode, ok := op.AsByte()
		if !ok || opcode >= opCount {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOpcode, op)
		}

		switch opcode {
		case OpAxis:
			return subject.Axis(arg)

		case OpLiteral:
			return arg, nil

		case OpRecurse:
			b, cf, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 2: %w", ErrBadArgument)
			}
			newSubject, err := c.eval(subject, b)
			if err != nil {
				return nil, err
			}
			newFormula, err := c.eval(subject, cf)
			if err != nil {
				return nil, err
			}
			subject, formula = newSubject, newFormula

		case OpIsCell:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			return FromBool(v.IsCell()), nil

		case OpIncrement:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			return Increment(v)

		case OpIsEqual:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			l, r, ok := v.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 5: %w", ErrBadArgument)
			}
			eq, err := c.equal(l, r)
			if err != nil {
				return nil, err
			}
			return FromBool(eq), nil

		case OpIf:
			b, branches, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 6: %w", ErrBadArgument)
			}
			then, els, ok := branches.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 6: %w", ErrBadArgument)
			}
			cond, err := c.eval(subject, b)
			if err != nil {
				return nil, err
			}
			switch v, ok := cond.AsByte(); {
			case ok && v == 0:
				formula = then
			case ok && v == 1:
				formula = els
			default:
				return nil, ErrBadCondition
			}

		case OpCompose:
			b, cf, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 7: %w", ErrBadArgument)
			}
			newSubject, err := c.eval(subject, b)
			if err != nil {
				return nil, err
			}
			subject, formula = newSubject, cf

		case OpDefine:
			b, cf, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 8: %w", ErrBadArgument)
			}
			pushed, err := c.eval(subject, b)
			if err != nil {
				return nil, err
			}
			subject, formula = Cell(pushed, subject), cf

		case OpCall:
			b, cf, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 9: %w", ErrBadArgument)
			}
			core, err := c.eval(subject, cf)
			if err != nil {
				return nil, err
			}
			inner, err := core.Axis(b)
			if err != nil {
				return nil, err
			}
			subject, formula = core, inner

		case OpHash:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			h, err := c.hash(v)
			if err != nil {
				return nil, err
			}
			return Atom(h[:]), nil

		case OpStoreByHash:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			h, err := c.hash(v)
			if err != nil {
				return nil, err
			}
			if err := c.in.memo.StoreHash(h, v); err != nil {
				return nil, err
			}
			return FromBool(true), nil

		case OpLoadByHash:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			bs := v.Bytes()
			if v.IsCell() || len(bs) != HashSize {
				return FromBool(false), nil
			}
			var h [HashSize]byte
			copy(h[:], bs)
			stored, ok, err := c.in.memo.LoadHash(h)
			if err != nil {
				return nil, err
			}
			if !ok {
				return FromBool(false), nil
			}
			return Cell(FromBool(true), stored), nil

		case OpStoreByKey:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			key, value, ok := v.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 13: %w", ErrBadArgument)
			}
			if err := c.in.memo.StoreKey(key, value); err != nil {
				return nil, err
			}
			return FromBool(true), nil

		case OpLoadByKey:
			key, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			stored, ok, err := c.in.memo.LoadKey(key)
			if err != nil {
				return nil, err
			}
			if !ok {
				return FromBool(false), nil
			}
			return Cell(FromBool(true), stored), nil

		case OpRandom:
			v, err := c.eval(subject, arg)
			if err != nil {
				return nil, err
			}
			length, ok := v.AsLength()
			if !ok || length > maxRandomBytes {
				return nil, ErrBadRandomLength
			}
			if err := c.incur(int64(length)); err != nil {
				return nil, err
			}
			bs := make([]byte, length)
			if _, err := io.ReadFull(c.in.entropy, bs); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEntropyFailed, err)
			}
			return &Noun{a: bs}, nil

		case OpSplice:
			b, cf, ok := arg.AsCell()
			if !ok {
				return nil, fmt.Errorf("opcode 16: %w", ErrBadArgument)
			}
			data, err := c.eval(subject, b)
			if err != nil {
				return nil, err
			}
			shape, err := c.eval(subject, cf)
			if err != nil {
				return nil, err
			}
			if err := c.incur(int64(FlatLen(data))); err != nil {
				return nil, err
			}
			return Splice(data, shape)
		}
	}
}

// hash content-hashes v, charging the budget per distinct node.
func (c *computation) hash(v *Noun) ([HashSize]byte, error) {
	var incur func(int64) error
	if c.limited {
		incur = c.incur
	}
	return hashNoun(v, make(map[*Noun][HashSize]byte), incur)
}

// equal compares structurally, charging one unit per visited node when a
// budget is set. Pointer-shared subtrees compare in one step.
func (c *computation) equal(a, b *Noun) (bool, error) {
	if err := c.incur(1); err != nil {
		return false, err
	}
	if a == b {
		return true, nil
	}
	al, ar, aok := a.AsCell()
	bl, br, bok := b.AsCell()
	if aok != bok {
		return false, nil
	}
	if !aok {
		return a.Equal(b), nil
	}
	eq, err := c.equal(al, bl)
	if err != nil || !eq {
		return eq, err
	}
	return c.equal(ar, br)
}
