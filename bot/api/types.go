package api

// User is an account record returned by the admin API.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Token is an API token issued by the admin API.
type Token struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Meeting is one tracked meeting owned by the user.
type Meeting struct {
	ID              int64  `json:"id"`
	Platform        string `json:"platform"`
	NativeMeetingID string `json:"native_meeting_id"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// BotRequest describes a transcription bot to launch into a meeting.
type BotRequest struct {
	Platform        string `json:"platform"`
	NativeMeetingID string `json:"native_meeting_id"`
	BotName         string `json:"bot_name,omitempty"`
	Language        string `json:"language,omitempty"`
}

// BotStatus reports the state of a transcription bot.
type BotStatus struct {
	Platform        string `json:"platform"`
	NativeMeetingID string `json:"native_meeting_id"`
	Status          string `json:"status,omitempty"`
}

// TranscriptSegment is one utterance of a meeting transcript.
type TranscriptSegment struct {
	StartTime float64 `json:"start_time"`
	Speaker   string  `json:"speaker,omitempty"`
	Text      string  `json:"text"`
}

// Transcript is the full transcript of one meeting.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
}
