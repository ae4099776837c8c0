package orchestration

import "github.com/koscakluka/ema-interrogation/core/speechio"

const (
	networkCaptureMessage   = "Network Error: Speech-to-Text requires an active internet connection. Please type your answer."
	blockedPlaybackMessage  = "Auto-play blocked. Please use the replay control on the message."
	agentUnavailableMessage = "Connection Error: the interrogation room is not responding. Send your answer again."
)

func captureErrorMessage(code string) string {
	if speechio.ClassifyCaptureError(code) == speechio.CaptureErrorNetwork {
		return networkCaptureMessage
	}
	return "Microphone Error: " + code
}

func playbackErrorMessage(code string, blocked bool) string {
	if blocked {
		return blockedPlaybackMessage
	}
	return "Audio Error: " + code
}
