package events

// KindSilenceElapsed identifies a silence watchdog fire.
const KindSilenceElapsed Kind = "watchdog.silence_elapsed"

// SilenceElapsed carries the generation of the arm that fired.
type SilenceElapsed struct {
	Base
	Arm uint64
}

// NewSilenceElapsed creates a silence elapsed event.
func NewSilenceElapsed(arm uint64) SilenceElapsed {
	return SilenceElapsed{Base: NewBase(KindSilenceElapsed), Arm: arm}
}
