// Package voice builds the spoken-and-recording instruction scripts the
// telephony provider executes on an answered call. Scripts are plain data;
// the transport layer renders them into provider markup.
package voice

const (
	DefaultVoice    = "alice"
	DefaultLanguage = "en-US"

	// Recording parameters for the confirmation prompt.
	RecordTimeoutSeconds   = 5
	RecordMaxLengthSeconds = 10
)

const (
	reminderText = "Hello, this is a reminder from your healthcare provider to confirm your medications for the day. " +
		"Please confirm if you have taken your Aspirin, Cardivol, and Metformin today. " +
		"After the beep, please say yes or no."
	voicemailText = "We called to check on your medication but you did not answer. " +
		"Please call us back or take your medications if you have not done so."
	closingText = "Thank you. Your response has been recorded. Goodbye."
)

// Say instructs the provider to speak text to the callee.
type Say struct {
	Text     string
	Voice    string
	Language string
}

// Record instructs the provider to capture the callee's spoken response.
type Record struct {
	TimeoutSeconds   int // silence before the recording is considered finished
	MaxLengthSeconds int // hard cap on the captured audio
	PlayBeep         bool
	ActionURL        string // webhook receiving the finished recording
}

// Instruction is one step of a script. Exactly one field is set.
type Instruction struct {
	Say    *Say
	Record *Record
}

// Script is the ordered instruction sequence for one call event.
type Script []Instruction

func say(text string) Instruction {
	return Instruction{Say: &Say{Text: text, Voice: DefaultVoice, Language: DefaultLanguage}}
}

// Reminder is the script for a live answer: the medication prompt followed by
// a recording step posting to actionURL.
func Reminder(actionURL string) Script {
	return Script{
		say(reminderText),
		{Record: &Record{
			TimeoutSeconds:   RecordTimeoutSeconds,
			MaxLengthSeconds: RecordMaxLengthSeconds,
			PlayBeep:         true,
			ActionURL:        actionURL,
		}},
	}
}

// Voicemail is the script left on an answering machine. No recording step.
func Voicemail() Script {
	return Script{say(voicemailText)}
}

// Closing is the script spoken after the patient's response was captured.
func Closing() Script {
	return Script{say(closingText)}
}
