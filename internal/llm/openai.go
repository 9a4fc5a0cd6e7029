// Package llm generates grounded answers with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// UnknownAnswer is the fixed sentence returned when the context cannot
// support an answer. It is also forced without calling the model when
// retrieval comes back empty.
const UnknownAnswer = "I don't know based on the provided document(s)."

const systemPrompt = "You are a helpful assistant. Answer using ONLY the provided context. " +
	"If the context is insufficient, say you don't know."

// Client calls the chat completions endpoint.
type Client struct {
	api          *openai.Client
	defaultModel string
	logger       *logrus.Logger
}

// NewClient builds a chat client. defaultModel is used when a request does
// not override the model.
func NewClient(baseURL, apiKey, defaultModel string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// BuildUserPrompt assembles the user message from the delimited context and
// the question.
func BuildUserPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("- Use the context only\n")
	b.WriteString("- Be concise\n")
	b.WriteString(fmt.Sprintf("- If not found in context, say: %q\n", UnknownAnswer))
	return b.String()
}

// Answer asks the model for an answer grounded in contextText. It returns the
// model's text verbatim and the model name actually used.
func (c *Client) Answer(ctx context.Context, question, contextText, modelName string) (string, string, error) {
	model := modelName
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return "", "", fmt.Errorf("no chat model configured and none requested")
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(contextText, question)},
		},
	})
	if err != nil {
		return "", model, fmt.Errorf("failed to generate answer: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", model, fmt.Errorf("chat model returned no choices")
	}

	c.logger.WithFields(logrus.Fields{
		"model":         model,
		"answer_length": len(resp.Choices[0].Message.Content),
	}).Debug("generated answer")

	return resp.Choices[0].Message.Content, model, nil
}
