package fuzzer

// Executor runs one input on both VMs. Implementations own process spawning and timeouts;
// a timeout surfaces as a crashed VMCapture.
type Executor interface {
	Execute(input []byte) (Run, error)
}
