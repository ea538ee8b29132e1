package metrics

import (
	"time"

	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/host"
)

// ResultOK labels successful operations.
const ResultOK = "ok"

func result(err error) string {
	if err == nil {
		return ResultOK
	}
	if kind := fnerr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// ObserveSpecialize records one Specialize call.
func ObserveSpecialize(d time.Duration, err error) {
	specializations.WithLabelValues(result(err)).Inc()
	specializeDuration.Observe(d.Seconds())
}

// ObserveInvoke records one Invoke call.
func ObserveInvoke(d time.Duration, err error) {
	invocations.WithLabelValues(result(err)).Inc()
	invokeDuration.Observe(d.Seconds())
}

// SetState marks s as the current host state.
func SetState(s host.State) {
	for _, st := range []host.State{host.Unspecialized, host.Specializing, host.Ready, host.Failed} {
		v := 0.0
		if st == s {
			v = 1
		}
		hostState.WithLabelValues(st.String()).Set(v)
	}
}
