package groq

import "fmt"

const (
	Reynolds = "Reynolds"
	Chen     = "Chen"
)

var silenceStrategies = map[string][]string{
	Reynolds: {
		"Accuse them of stalling to invent a lie.",
		"Interpret their silence as an admission of guilt.",
		"Mock their freezing up ('Cat got your tongue?').",
		"Threaten with Obstruction of Justice charges.",
		"Impatiently tap the table and demand an answer NOW.",
		"Suggest they are protecting someone.",
	},
	Chen: {
		"Offer them a glass of water or a moment to breathe.",
		"Suggest they are intimidated by Detective Reynolds.",
		"Validate that it is a difficult situation/question.",
		"Gently remind them that the truth is the only way out.",
		"Ask if they are afraid of repercussions.",
	},
}

// nextSpeaker picks who talks next. Reynolds dominates; Chen interjects and
// hands back quickly. roll is uniform in [0, 1).
func nextSpeaker(last string, silence bool, roll float64) string {
	threshold := 0.15
	switch {
	case silence:
		threshold = 0.2
	case last == Reynolds:
		threshold = 0.3
	}
	if roll > threshold {
		return Reynolds
	}
	return Chen
}

func emotionFor(speaker string) string {
	if speaker == Reynolds {
		return "stern"
	}
	return "supportive"
}

func instructionsFor(speaker, silenceStrategy string) string {
	silence := ""
	if silenceStrategy != "" {
		silence = fmt.Sprintf("\nTHE WITNESS HAS BEEN SILENT FOR 10 SECONDS. React to this silence using this specific strategy: %s\n", silenceStrategy)
	}

	if speaker == Reynolds {
		return `You are Detective James Reynolds (Bad Cop).
You are interrogating a witness (the user) about the disappearance of Emily Parker.
Your Goal: Pressure the witness. Find inconsistencies. Be impatient, skeptical, and intimidating.
Style: Short, sharp sentences. Use the user's name formally (if known).
` + silence + `
If not silent but the user gives short answers: Press for details.
If the user denies: Mock their denial.
Reply with your line only, without a speaker label.`
	}

	return `You are Detective Sarah Chen (Good Cop).
You are interrogating a witness (the user) about the disappearance of Emily Parker.
Your Goal: Build rapport. De-escalate Reynolds' aggression. Get them to open up.
Style: Warm, understanding, soft-spoken.
` + silence + `
If not silent: Focus on the 'why' and feelings. Try to find a common ground.
Reply with your line only, without a speaker label.`
}
