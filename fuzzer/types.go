package fuzzer

// VMCapture is what the executor recorded for one VM process.
type VMCapture struct {
	Stdout   []byte
	Captured bool // false when the executor got nothing back from the process
	Crashed  bool // abnormal exit, including timeouts
}

// Run is one input executed on both VMs.
type Run struct {
	Input  []byte // program bytes; triage records store their canonical base64 form
	First  VMCapture
	Second VMCapture
}

// stdout returns the captured output, or nil when nothing was captured.
func (c VMCapture) stdout() []byte {
	if !c.Captured {
		return nil
	}
	if c.Stdout == nil {
		return []byte{}
	}
	return c.Stdout
}
