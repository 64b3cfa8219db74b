package botpress

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// ConsoleChannel is the channel of conversations held on a terminal.
const ConsoleChannel = "console"

// Console chats with a bot over line-based IO.
// This allows for easy testing of flows and integration with terminals.
type Console struct {
	Input  io.Reader
	Output io.Writer
	BotID  string
	UserID string
	// Headless disables the banner and the prompt.
	Headless bool
	// Markdown, when set, renders the text of replies before printing.
	Markdown func(string) (string, error)
}

// NewConsole creates a Console for a bot. Input and Output must be set before Run.
func NewConsole(botID string) *Console {
	return &Console{BotID: botID, UserID: "console"}
}

// Run reads one message per line and prints the replies until EOF, "exit" or "quit".
func (c *Console) Run(ctx context.Context, rt *Runtime) error {
	if c.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if c.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(c.Input)

	rt.RegisterSender(ConsoleChannel, ports.SenderFunc(func(_ context.Context, evt *domain.Event) error {
		if evt.Target != c.UserID {
			return nil
		}
		_, err := fmt.Fprintln(c.Output, c.format(evt))
		return err
	}))

	if !c.Headless {
		fmt.Fprintf(c.Output, "--- %s (console) ---\n", c.BotID)
	}

	for {
		if !c.Headless {
			fmt.Fprint(c.Output, "> ")
		}
		text, err := lineReader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)

		if input == "exit" || input == "quit" {
			fmt.Fprintln(c.Output, "Bye!")
			return nil
		}
		if input != "" {
			evt := domain.NewEvent(domain.EventInit{
				Direction: domain.DirectionIncoming,
				BotID:     c.BotID,
				Channel:   ConsoleChannel,
				Target:    c.UserID,
				Type:      "text",
				Payload:   map[string]any{"text": input},
			})
			if err := rt.Dispatch(ctx, evt); err != nil {
				return fmt.Errorf("dispatch error: %w", err)
			}
		}

		// Graceful exit on EOF
		if err != nil {
			return nil
		}
	}
}

func (c *Console) format(evt *domain.Event) string {
	text := formatElement(evt)
	if c.Markdown == nil {
		return text
	}
	rendered, err := c.Markdown(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

// formatElement turns a rendered element into terminal text.
func formatElement(evt *domain.Event) string {
	p := evt.Payload
	var b strings.Builder
	switch evt.Type {
	case "image":
		fmt.Fprintf(&b, "[image] %v", p["image"])
	case "card":
		fmt.Fprintf(&b, "[card] %v", p["title"])
	case "carousel":
		items, _ := p["items"].([]any)
		fmt.Fprintf(&b, "[carousel] %d items", len(items))
	default:
		if text, ok := p["text"].(string); ok {
			b.WriteString(text)
		} else {
			b.WriteString("[" + evt.Type + "]")
		}
	}
	if choices, ok := p["choices"].([]any); ok {
		for _, item := range choices {
			if ch, ok := item.(map[string]any); ok {
				fmt.Fprintf(&b, "\n  - %v", ch["title"])
			}
		}
	}
	return b.String()
}
