package hull

import "time"

// lagSmoother keeps a fixed tick period. Overruns are recorded as lost time, capped, and paid
// back by shortening the following sleeps.
type lagSmoother struct {
	period time.Duration
	window time.Duration
	lost   time.Duration
}

func newLagSmoother(period, window time.Duration) lagSmoother {
	return lagSmoother{period: period, window: max(0, window)}
}

// settle is called after a tick that took elapsed and returns how long to sleep.
// Lost time always stays in [0, window].
func (l *lagSmoother) settle(elapsed time.Duration) time.Duration {
	slack := l.period - elapsed
	if slack <= 0 {
		// Behind: no sleep, remember the overrun
		l.lost = min(l.lost-slack, l.window)
		return 0
	}

	if l.lost >= slack {
		l.lost -= slack
		return 0
	}
	slack -= l.lost
	l.lost = 0
	return slack
}

// overslept records a sleep that lasted longer than asked. An early wake changes nothing.
func (l *lagSmoother) overslept(extra time.Duration) {
	if extra <= 0 {
		return
	}
	l.lost = min(l.lost+extra, l.window)
}

func (l *lagSmoother) lostTime() time.Duration {
	return l.lost
}
