package notify

import (
	"go.uber.org/fx"
)

// Sinks collects the notifiers provided into the "notify_sinks" group.
type Sinks struct {
	fx.In
	Notifiers []Notifier `group:"notify_sinks"`
}

func NewMulti(sinks Sinks) Notifier {
	out := make(Multi, 0, len(sinks.Notifiers))
	for _, n := range sinks.Notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

var Module = fx.Module("notify", fx.Provide(NewMulti))
