package gemini

import (
	"github.com/koscakluka/ema-relay/core/llms"
	"google.golang.org/genai"
)

const (
	roleUser  = "user"
	roleModel = "model"

	systemNotePrefix = "System note: "
)

// toContents splits the history into a system instruction and the
// conversation. Leading system messages form the instruction; later ones
// have no Gemini equivalent and are sent as prefixed user parts.
func toContents(messages []llms.Message) (*genai.Content, []*genai.Content) {
	var instruction *genai.Content
	i := 0
	for ; i < len(messages) && messages[i].Role == llms.RoleSystem; i++ {
		if instruction == nil {
			instruction = &genai.Content{}
		}
		instruction.Parts = append(instruction.Parts, genai.NewPartFromText(messages[i].Content))
	}

	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for _, message := range messages[i:] {
		role, text := roleUser, message.Content
		switch message.Role {
		case llms.RoleAssistant:
			role = roleModel
		case llms.RoleSystem:
			text = systemNotePrefix + text
		}

		// Gemini expects alternating turns, so consecutive messages of the
		// same role are merged.
		if last != nil && last.Role == role {
			last.Parts = append(last.Parts, genai.NewPartFromText(text))
			continue
		}
		last = &genai.Content{Role: role, Parts: []*genai.Part{genai.NewPartFromText(text)}}
		contents = append(contents, last)
	}

	return instruction, contents
}
