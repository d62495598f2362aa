package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amanshresthaa/quizd/llm"
)

const judgeQuestionTool = "judge_question"

// Judge grades a generated question against its source context via a
// forced tool call.
func (c *Client) Judge(ctx context.Context, input llm.JudgeInput) (*llm.JudgeVerdict, error) {
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
					Content: "You are a strict quiz question reviewer. Grade whether the question is answerable from the source text and whether the given answer is correct.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildJudgePrompt(input),
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        judgeQuestionTool,
						Description: "Submit the evaluation verdict for the question",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"answerable": map[string]interface{}{
									"type":        "number",
									"description": "How answerable the question is from the source text alone, 0 to 1",
								},
								"correct": map[string]interface{}{
									"type":        "number",
									"description": "How correct the given answer is, 0 to 1",
								},
								"rationale": map[string]interface{}{
									"type":        "string",
									"description": "Brief explanation of the grades",
								},
							},
							"required": []string{"answerable", "correct", "rationale"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: judgeQuestionTool,
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrJudgeUnavailable, err)
	}

	args, err := toolCallArguments(resp, judgeQuestionTool)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrJudgeUnavailable, err)
	}

	var out struct {
		Answerable float32 `json:"answerable"`
		Correct    float32 `json:"correct"`
		Rationale  string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return nil, fmt.Errorf("%w: parse tool arguments: %v", llm.ErrJudgeUnavailable, err)
	}

	out.Answerable = clamp01(out.Answerable)
	out.Correct = clamp01(out.Correct)

	return &llm.JudgeVerdict{
		Score:      (out.Answerable + out.Correct) / 2,
		Rationale:  out.Rationale,
		Answerable: out.Answerable,
		Correct:    out.Correct,
	}, nil
}

func buildJudgePrompt(input llm.JudgeInput) string {
	var sb strings.Builder

	sb.WriteString("Source text:\n")
	sb.WriteString(input.Context)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(input.Question)
	sb.WriteString("\n\nProposed answer:\n")
	sb.WriteString(input.Answer)
	sb.WriteString("\n\nGrade the question on two aspects, each from 0 to 1:\n")
	sb.WriteString("1. answerable: can the question be answered using only the source text?\n")
	sb.WriteString("2. correct: is the proposed answer correct per the source text?\n")
	sb.WriteString("Use the judge_question tool to return your verdict.\n")

	return sb.String()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
