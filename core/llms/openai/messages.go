package openai

import (
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/openai/openai-go"
)

func toOpenAIMessages(messages []llms.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case llms.RoleSystem:
			converted = append(converted, openai.SystemMessage(message.Content))
		case llms.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(message.Content))
		default:
			converted = append(converted, openai.UserMessage(message.Content))
		}
	}
	return converted
}
