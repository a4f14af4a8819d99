package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wagiedev/regbot/internal/chat"
)

// runREPL is the line-oriented fallback for terminals the full UI cannot
// drive. One prompt, one engine turn, no screen control.
func runREPL(ctx context.Context, engine *chat.Engine) error {
	fmt.Println(chat.WelcomeMessage())
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Print("> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D) or a read error ends the chat.
			fmt.Println()

			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "bye":
			fmt.Println("Goodbye!")

			return nil
		}

		fmt.Println(engine.Respond(ctx, input))
		fmt.Println()
	}
}
