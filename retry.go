package threadpool

import "time"

type Retry struct {
	sleepDuration time.Duration
	RetryFunc     func() error
	numTries      int
}

func NewRetry(numTries int, sleepDuration time.Duration, retryFunc func() error) *Retry {
	if numTries < 1 {
		numTries = 1
	}

	return &Retry{
		sleepDuration: sleepDuration,
		RetryFunc:     retryFunc,
		numTries:      numTries,
	}
}

// Do calls RetryFunc until it succeeds or numTries is used up, sleeping
// between attempts. It returns the last error.
func (r *Retry) Do() (err error) {
	for i := 0; i < r.numTries; i++ {
		err = r.RetryFunc()
		if err == nil {
			return nil
		}

		if i < r.numTries-1 {
			time.Sleep(r.sleepDuration)
		}
	}

	return err
}
