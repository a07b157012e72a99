package update

// Observer receives progress from a running batch. Calls are made from the
// goroutine running the batch, in order.
type Observer interface {
	// StateChanged is called on every transition of an operation
	StateChanged(repo Repository, key string, state State)
	// Completed is called once per operation with its result
	Completed(result OperationResult)
}

type nopObserver struct{}

func (nopObserver) StateChanged(Repository, string, State) {}
func (nopObserver) Completed(OperationResult)              {}
