package button

import "github.com/sweeney/gesture-button/internal/logic"

// Notifier receives events emitted by a button. Delivery is fire-and-forget:
// implementations must not block for long and cannot report failure.
type Notifier interface {
	Notify(b *Button, ev logic.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(b *Button, ev logic.Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(b *Button, ev logic.Event) {
	f(b, ev)
}

// Broadcast returns a Notifier delivering to each of ns in order. Nil
// entries are skipped.
func Broadcast(ns ...Notifier) Notifier {
	var out broadcast
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type broadcast []Notifier

func (bc broadcast) Notify(b *Button, ev logic.Event) {
	for _, n := range bc {
		n.Notify(b, ev)
	}
}
