package tunnel

import "time"

// DefaultTickInterval is how often the background session loops run.
const DefaultTickInterval = time.Millisecond

// StepFunc is one iteration of a background loop. Returning false or an error
// stops the Ticker.
type StepFunc func() (bool, error)

// Ticker runs a StepFunc on its own goroutine every interval until the step
// asks it to stop.
type Ticker struct {
	done chan struct{}
	err  error
}

// StartTicker runs step immediately and then once per interval.
func StartTicker(interval time.Duration, step StepFunc) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	t := &Ticker{done: make(chan struct{})}
	go t.run(interval, step)
	return t
}

func (t *Ticker) run(interval time.Duration, step StepFunc) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		cont, err := step()
		if err != nil {
			t.err = err
			return
		}
		if !cont {
			return
		}
		<-ticker.C
	}
}

// Done is closed once the step function stopped the Ticker.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the Ticker stopped and returns the error of the last step.
func (t *Ticker) Wait() error {
	<-t.done
	return t.err
}
