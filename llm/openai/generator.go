package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
)

const submitQuestionTool = "submit_question"

// Generate produces one candidate question grounded in the provided
// context text via a forced tool call.
func (c *Client) Generate(ctx context.Context, input llm.GenerateInput) (*llm.GeneratedQuestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.opts.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert quiz question generator. Generate one high-quality question that is answerable from the provided source text alone.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildGeneratePrompt(input),
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        submitQuestionTool,
						Description: "Submit the generated quiz question",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"question": map[string]interface{}{
									"type":        "string",
									"description": "The question text",
								},
								"answer": map[string]interface{}{
									"type":        "string",
									"description": "The correct answer",
								},
								"choices": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "string",
									},
									"description": "4 answer options for multiple choice questions, including the correct one",
								},
							},
							"required": []string{"question", "answer"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: submitQuestionTool,
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)
	}

	args, err := toolCallArguments(resp, submitQuestionTool)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrGenerationUnavailable, err)
	}

	var out struct {
		Question string   `json:"question"`
		Answer   string   `json:"answer"`
		Choices  []string `json:"choices"`
	}
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return nil, fmt.Errorf("%w: parse tool arguments: %v", llm.ErrGenerationUnavailable, err)
	}
	if out.Question == "" || out.Answer == "" {
		return nil, fmt.Errorf("%w: incomplete question", llm.ErrGenerationUnavailable)
	}

	return &llm.GeneratedQuestion{
		Question: out.Question,
		Answer:   out.Answer,
		Choices:  out.Choices,
	}, nil
}

func buildGeneratePrompt(input llm.GenerateInput) string {
	var sb strings.Builder

	sb.WriteString("Generate one quiz question from the following source text:\n\n")
	sb.WriteString(input.Context)
	sb.WriteString("\n\n")

	if input.Difficulty != "" {
		fmt.Fprintf(&sb, "Difficulty level: %s\n", input.Difficulty)
	}
	switch input.Type {
	case model.QuestionMultipleChoice:
		sb.WriteString("Question type: multiple choice with exactly 4 options\n")
	case model.QuestionTrueFalse:
		sb.WriteString("Question type: true/false\n")
	case model.QuestionShortAnswer:
		sb.WriteString("Question type: short answer\n")
	}

	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- The question must be answerable from the source text alone\n")
	sb.WriteString("- The answer should be non-obvious but clearly correct\n")
	sb.WriteString("- The question should test understanding, not just memorization\n")
	sb.WriteString("- Do not give the answer away in the question text\n")
	sb.WriteString("- Use the submit_question tool to return your question\n")

	return sb.String()
}

// toolCallArguments extracts the JSON arguments of the forced tool call.
func toolCallArguments(resp openai.ChatCompletionResponse, tool string) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in response")
	}
	call := choice.Message.ToolCalls[0]
	if call.Function.Name != tool {
		return "", fmt.Errorf("unexpected tool call: %s", call.Function.Name)
	}
	return call.Function.Arguments, nil
}
