package stream

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Payload is the request body sent to the streaming endpoint.
type Payload struct {
	ChatInputList []Message `json:"chat_input_list"`
}

// NewPayload builds a Payload from turns. No validation is done; an empty list
// is sent as [].
func NewPayload(turns ...Message) Payload {
	if turns == nil {
		turns = []Message{}
	}
	return Payload{ChatInputList: turns}
}

// Last returns the text of the final turn, or "".
func (p Payload) Last() string {
	if len(p.ChatInputList) == 0 {
		return ""
	}
	return p.ChatInputList[len(p.ChatInputList)-1].Message
}
