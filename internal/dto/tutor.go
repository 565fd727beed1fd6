package dto

// TutorChatMessage is one turn of the conversation sent by the chat UI.
type TutorChatMessage struct {
	Role     string `json:"role" validate:"required,oneof=user assistant system"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// TutorChatRequest is the body of POST /student-ai-chat. ImageURL, when set,
// attaches to the last user message unless that message carries its own.
type TutorChatRequest struct {
	Messages []TutorChatMessage `json:"messages" validate:"required,min=1,dive"`
	ImageURL string             `json:"imageUrl,omitempty"`
}
