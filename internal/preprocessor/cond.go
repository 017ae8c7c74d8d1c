package preprocessor

import "errors"

type frameKind int

const (
	frameIf frameKind = iota
	frameIfdef
	frameIfndef
)

func (k frameKind) String() string {
	switch k {
	case frameIfdef:
		return "#ifdef"
	case frameIfndef:
		return "#ifndef"
	}
	return "#if"
}

// frame is one open #if/#ifdef/#ifndef chain.
type frame struct {
	kind frameKind
	// branchTaken reports whether some branch of the chain was selected.
	branchTaken bool
	// selfActive reports whether the current branch's condition holds.
	selfActive bool
	// parentActive is the visibility when the chain was opened.
	parentActive bool
	sawElse      bool
	line         int
}

var (
	errElifWithoutIf  = errors.New("#elif without #if")
	errElifAfterElse  = errors.New("#elif after #else")
	errElseWithoutIf  = errors.New("#else without #if")
	errElseAfterElse  = errors.New("#else after #else")
	errEndifWithoutIf = errors.New("#endif without #if")
)

// condStack tracks nested conditional chains as flat frames.
type condStack struct {
	stack []frame
}

func newCondStack() *condStack  { return &condStack{} }
func (c *condStack) Depth() int { return len(c.stack) }

// Active reports whether program text is visible: every open branch holds.
func (c *condStack) Active() bool {
	for i := range c.stack {
		if !c.stack[i].selfActive {
			return false
		}
	}
	return true
}

// Push opens a chain. cond is only called when the enclosing context is
// visible, so dead code never reaches the evaluator.
func (c *condStack) Push(kind frameKind, line int, cond func() bool) {
	parent := c.Active()
	active := parent && cond()
	c.stack = append(c.stack, frame{
		kind:         kind,
		branchTaken:  active,
		selfActive:   active,
		parentActive: parent,
		line:         line,
	})
}

// Elif moves to the next branch. The first true branch wins; cond is not
// called once a branch was taken or when the chain is dead.
func (c *condStack) Elif(cond func() bool) error {
	if len(c.stack) == 0 {
		return errElifWithoutIf
	}
	top := &c.stack[len(c.stack)-1]
	if top.sawElse {
		top.selfActive = false
		return errElifAfterElse
	}
	if !top.parentActive || top.branchTaken {
		top.selfActive = false
		return nil
	}
	top.selfActive = cond()
	top.branchTaken = top.selfActive
	return nil
}

func (c *condStack) Else() error {
	if len(c.stack) == 0 {
		return errElseWithoutIf
	}
	top := &c.stack[len(c.stack)-1]
	if top.sawElse {
		top.selfActive = false
		return errElseAfterElse
	}
	top.sawElse = true
	top.selfActive = top.parentActive && !top.branchTaken
	top.branchTaken = true
	return nil
}

func (c *condStack) Pop() error {
	if len(c.stack) == 0 {
		return errEndifWithoutIf
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// Truncate closes every frame above depth and returns them innermost first.
func (c *condStack) Truncate(depth int) []frame {
	if depth >= len(c.stack) {
		return nil
	}
	open := make([]frame, 0, len(c.stack)-depth)
	for i := len(c.stack) - 1; i >= depth; i-- {
		open = append(open, c.stack[i])
	}
	c.stack = c.stack[:depth]
	return open
}
