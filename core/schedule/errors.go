package schedule

import "fmt"

// CallbackError reports a callback that panicked. The worker recovers the
// panic and counts the callback as completed.
type CallbackError struct {
	Scheduler string
	Worker    string
	Recovered any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("schedule: callback on %s panicked: %v", e.Worker, e.Recovered)
}

// Unwrap returns the recovered value if it was an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}
