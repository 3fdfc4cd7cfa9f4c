package mq

type TempError struct {
	Err error
}

func (e TempError) Error() string {
	return e.Err.Error()
}

func (e TempError) Unwrap() error {
	return e.Err
}

func (e TempError) Temporary() bool {
	return true
}

// Temporary marks an error as retryable; the consumer requeues the delivery.
func Temporary(err error) error {
	return TempError{Err: err}
}
