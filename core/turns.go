package orchestration

// Turn says who currently holds the floor.
type Turn int

const (
	TurnIdle Turn = iota
	TurnHumanListening
	TurnHumanTyping
	TurnAwaitingAgentReply
	TurnAgentSpeaking
)

func (t Turn) String() string {
	switch t {
	case TurnIdle:
		return "idle"
	case TurnHumanListening:
		return "human listening"
	case TurnHumanTyping:
		return "human typing"
	case TurnAwaitingAgentReply:
		return "awaiting agent reply"
	case TurnAgentSpeaking:
		return "agent speaking"
	}
	return "unknown"
}

type Role int

const (
	RoleHuman Role = iota
	RoleAgent
)

func (r Role) String() string {
	if r == RoleAgent {
		return "agent"
	}
	return "human"
}

// Utterance is a single entry of the transcript. Entries are never modified
// once appended.
type Utterance struct {
	Role      Role
	Text      string
	AgentName string
	Emotion   string
}

// VoicePreset is the playback voice used for an agent.
type VoicePreset struct {
	Voice string
	Rate  float64
	Pitch float64
}

const leadInterrogator = "Reynolds"

// PresetFor returns the voice preset of the named agent.
func PresetFor(agentName string) VoicePreset {
	if agentName == leadInterrogator {
		return VoicePreset{Voice: "Male", Rate: 1.1, Pitch: 0.7}
	}
	return VoicePreset{Voice: "Female", Rate: 0.95, Pitch: 1.1}
}
