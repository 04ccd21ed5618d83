package tts

// VoiceOption describes one entry of the fixed voice reference table
type VoiceOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// SpeedOption describes one entry of the fixed speed reference table
type SpeedOption struct {
	Value       float64 `json:"value"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// System defaults applied when a request or session carries no preference
const (
	DefaultVoice = "alloy"
	DefaultSpeed = 0.8
)

// voiceOptions is the fixed set of voices offered by the provider.
// Order matters: the first entry is the documented default.
var voiceOptions = []VoiceOption{
	{Value: "alloy", Label: "Alloy", Description: "Balanced, natural"},
	{Value: "echo", Label: "Echo", Description: "Clear, professional"},
	{Value: "fable", Label: "Fable", Description: "Expressive, storytelling"},
	{Value: "onyx", Label: "Onyx", Description: "Deep, authoritative"},
	{Value: "nova", Label: "Nova", Description: "Bright, energetic"},
	{Value: "shimmer", Label: "Shimmer", Description: "Soft, gentle"},
}

// speedOptions is the fixed set of speeds this service offers. The provider
// accepts 0.25-4.0 but only these seven values are ever sent.
var speedOptions = []SpeedOption{
	{Value: 0.5, Label: "0.5x", Description: "Very slow"},
	{Value: 0.75, Label: "0.75x", Description: "Slow"},
	{Value: 0.8, Label: "0.8x", Description: "Relaxed (default)"},
	{Value: 1.0, Label: "1.0x", Description: "Normal"},
	{Value: 1.25, Label: "1.25x", Description: "Slightly fast"},
	{Value: 1.5, Label: "1.5x", Description: "Fast"},
	{Value: 2.0, Label: "2.0x", Description: "Very fast"},
}

// VoiceOptions returns a copy of the voice reference table
func VoiceOptions() []VoiceOption {
	out := make([]VoiceOption, len(voiceOptions))
	copy(out, voiceOptions)
	return out
}

// SpeedOptions returns a copy of the speed reference table
func SpeedOptions() []SpeedOption {
	out := make([]SpeedOption, len(speedOptions))
	copy(out, speedOptions)
	return out
}

// ValidVoice reports whether voice is a member of the voice reference table.
// Unknown values are rejected, never coerced.
func ValidVoice(voice string) bool {
	for _, v := range voiceOptions {
		if v.Value == voice {
			return true
		}
	}
	return false
}

// ValidSpeed reports whether speed is a member of the speed reference table
func ValidSpeed(speed float64) bool {
	for _, s := range speedOptions {
		if s.Value == speed {
			return true
		}
	}
	return false
}
