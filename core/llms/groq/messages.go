package groq

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-relay/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(messages []llms.Message) ([]message, error) {
	converted := []message{}
	if err := copier.Copy(&converted, messages); err != nil {
		return nil, fmt.Errorf("error converting messages: %w", err)
	}
	return converted, nil
}
