package hub

// Frame constructors for everything the runtime pushes to subscribers. The
// Type discriminator is what clients switch on, so it is set here and
// nowhere else.

// TranscriptFrame carries one finished transcription.
type TranscriptFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Transcript builds a transcript frame.
func Transcript(text, source string) TranscriptFrame {
	return TranscriptFrame{Type: "transcript", Text: text, Source: source}
}

// StartFrame opens a chat answer stream.
type StartFrame struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// Start builds a chat start frame.
func Start(role string) StartFrame {
	return StartFrame{Type: "start", Role: role}
}

// ChunkFrame carries one chat answer token.
type ChunkFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Chunk builds a chat chunk frame.
func Chunk(content string) ChunkFrame {
	return ChunkFrame{Type: "chunk", Content: content}
}

// DoneFrame closes a chat answer stream.
type DoneFrame struct {
	Type string `json:"type"`
}

// Done builds a chat done frame.
func Done() DoneFrame {
	return DoneFrame{Type: "done"}
}

// AutoStartFrame opens an unprompted answer stream for a detected question.
type AutoStartFrame struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// AutoStart builds an auto-answer start frame.
func AutoStart(question string) AutoStartFrame {
	return AutoStartFrame{Type: "auto_start", Question: question}
}

// AutoChunkFrame carries one auto-answer token.
type AutoChunkFrame struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	Content  string `json:"content"`
}

// AutoChunk builds an auto-answer chunk frame.
func AutoChunk(question, content string) AutoChunkFrame {
	return AutoChunkFrame{Type: "auto_chunk", Question: question, Content: content}
}

// AutoDoneFrame closes an auto-answer stream.
type AutoDoneFrame struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// AutoDone builds an auto-answer done frame.
func AutoDone(question string) AutoDoneFrame {
	return AutoDoneFrame{Type: "auto_done", Question: question}
}

// ErrorFrame reports a per-connection problem, e.g. rate limiting.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error builds an error frame.
func Error(message string) ErrorFrame {
	return ErrorFrame{Type: "error", Message: message}
}
