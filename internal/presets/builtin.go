package presets

import "voicetransor/internal/domain"

const translateSRTPrompt = "You are translating an SRT subtitle file.\n" +
	"Follow these NON-NEGOTIABLE rules:\n" +
	"1) Preserve each block's structure EXACTLY:\n" +
	"   - Line 1: the block number (unchanged).\n" +
	"   - Line 2: the time range (unchanged).\n" +
	"   - Line 3..N: text lines (translate ONLY these lines).\n" +
	"2) Do not merge or split blocks or lines. Keep the SAME number of lines per block.\n" +
	"3) Output MUST be valid SRT. No extra commentary or trailing blank lines.\n" +
	"Translate the text lines into Simplified Chinese. Keep punctuation natural.\n" +
	"Return ONLY the translated SRT blocks."

var builtins = []domain.Preset{
	{
		Name:       "Summarize",
		PromptText: "Summarize the source text into 5–8 concise bullet points. Keep key facts, dates, names.",
		Builtin:    true,
	},
	{
		Name:       "Translate to Chinese",
		PromptText: "Translate the source text into Simplified Chinese with natural wording.",
		Builtin:    true,
	},
	{
		Name:       "Meeting minutes",
		PromptText: "Produce meeting minutes: agenda, decisions, action items (with owners and due dates), open questions.",
		Builtin:    true,
	},
	{
		Name:       "Translate SRT to Chinese (preserve timestamps)",
		PromptText: translateSRTPrompt,
		Builtin:    true,
	},
}

// Builtins returns the read-only presets shipped with the application.
func Builtins() []domain.Preset {
	out := make([]domain.Preset, len(builtins))
	copy(out, builtins)
	return out
}

// LookupBuiltin finds a shipped preset by name.
func LookupBuiltin(name string) (domain.Preset, bool) {
	for _, preset := range builtins {
		if preset.Name == name {
			return preset, true
		}
	}
	return domain.Preset{}, false
}
