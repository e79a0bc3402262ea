package oracle

import "fmt"

// ExitClass is the executor's classification of how the two VM processes ended.
type ExitClass int

const (
	BothNormal ExitClass = iota
	OnlyFirstCrashed
	OnlySecondCrashed
	BothCrashed
)

var exitClassNames = map[ExitClass]string{
	BothNormal:        "both-normal",
	OnlyFirstCrashed:  "A-crashed-only",
	OnlySecondCrashed: "B-crashed-only",
	BothCrashed:       "both-crashed",
}

// ClassifyExit folds the two per-process crash flags into an ExitClass.
func ClassifyExit(firstCrashed, secondCrashed bool) ExitClass {
	switch {
	case firstCrashed && secondCrashed:
		return BothCrashed
	case firstCrashed:
		return OnlyFirstCrashed
	case secondCrashed:
		return OnlySecondCrashed
	default:
		return BothNormal
	}
}

func (c ExitClass) String() string {
	if name, ok := exitClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ExitClass(%d)", int(c))
}

// FirstCrashed reports whether VM-A crashed.
func (c ExitClass) FirstCrashed() bool {
	return c == OnlyFirstCrashed || c == BothCrashed
}

// SecondCrashed reports whether VM-B crashed.
func (c ExitClass) SecondCrashed() bool {
	return c == OnlySecondCrashed || c == BothCrashed
}

// OneCrashed reports whether exactly one VM crashed.
func (c ExitClass) OneCrashed() bool {
	return c == OnlyFirstCrashed || c == OnlySecondCrashed
}
