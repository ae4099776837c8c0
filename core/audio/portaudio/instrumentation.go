package portaudio

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-interrogation/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)
