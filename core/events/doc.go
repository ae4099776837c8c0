// Package events defines the typed event contract shared by the speech devices,
// the speech I/O controller and the turn coordinator.
//
// Event kinds are grouped by namespace:
//
//   - capture.*
//   - playback.*
//   - user_action.*
//   - watchdog.*
//   - agent.*
//
// capture events (emitted by capture devices, at most one terminal event per
// capture session)
//
//   - CapturePartial (capture.partial): text heard so far, not terminal.
//   - CaptureTranscript (capture.transcript): final transcript of the session.
//   - CaptureFailed (capture.failed): device level failure with a string code.
//   - CaptureEnded (capture.ended): the device stopped without a result.
//
// playback events (emitted by playback devices, correlated by utterance id)
//
//   - PlaybackStarted (playback.started): the device began speaking.
//   - PlaybackEnded (playback.ended): the utterance finished normally.
//   - PlaybackFailed (playback.failed): the utterance failed with a string code.
//   - VoicesChanged (playback.voices_changed): the voice list became available.
//
// user_action events (posted by the presentation layer)
//
//   - TextSubmitted (user_action.text_submitted)
//   - TypedTextChanged (user_action.typed_text_changed)
//   - CaptureToggled (user_action.capture_toggled)
//   - ReplayRequested (user_action.replay_requested)
//
// watchdog events
//
//   - SilenceElapsed (watchdog.silence_elapsed): carries the arm generation.
//
// agent events (results of remote calls and of coordinator playback requests)
//
//   - AgentReplied (agent.replied)
//   - AgentCallFailed (agent.call_failed)
//   - PlaybackCompleted (agent.playback_completed)
//   - PlaybackErrored (agent.playback_errored)
package events
