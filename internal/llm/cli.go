package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIClient uses an external CLI tool (kimi, claude, gemini, etc.) as the
// completion service. This requires no API key.
type CLIClient struct {
	command string
	args    []string // args before the prompt, e.g. ["--print", "-p"]
	workDir string
	pipe    bool // if true, pipe prompt to stdin instead of appending as arg
}

// NewCLIClient creates a Client backed by a CLI tool.
// For kimi:   NewCLIClient("kimi", []string{"--print", "--final-message-only", "-p"}, dir, false)
// For claude: NewCLIClient("claude", []string{"-p"}, dir, false)
// For gemini: NewCLIClient("gemini", nil, dir, true)  // pipes to stdin
func NewCLIClient(command string, args []string, workDir string, pipe bool) *CLIClient {
	return &CLIClient{
		command: command,
		args:    args,
		workDir: workDir,
		pipe:    pipe,
	}
}

// Complete flattens the messages into one prompt. The trimmed stdout becomes
// the only choice; empty stdout yields a response with no choices.
func (c *CLIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	out, err := c.run(ctx, flattenPrompt(req.Messages))
	if err != nil {
		return nil, err
	}
	if out == "" {
		return &Response{}, nil
	}
	return &Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: out}}}}, nil
}

func flattenPrompt(msgs []Message) string {
	if len(msgs) == 1 {
		return msgs[0].Content
	}
	var prompt strings.Builder
	for _, m := range msgs {
		prompt.WriteString(fmt.Sprintf("[%s]: %s\n\n", m.Role, m.Content))
	}
	return strings.TrimSpace(prompt.String())
}

func (c *CLIClient) run(ctx context.Context, prompt string) (string, error) {
	var args []string
	args = append(args, c.args...)

	var cmd *exec.Cmd
	if c.pipe {
		cmd = exec.CommandContext(ctx, c.command, args...)
		cmd.Stdin = strings.NewReader(prompt)
	} else {
		args = append(args, prompt)
		cmd = exec.CommandContext(ctx, c.command, args...)
	}

	if c.workDir != "" {
		cmd.Dir = c.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w (stderr: %s)", c.command, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
