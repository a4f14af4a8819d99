package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/regbot/internal/protocol"
	"github.com/wagiedev/regbot/internal/tools"
	"github.com/wagiedev/regbot/internal/validate"
)

// Step is the conversation's position in the registration dialogue.
type Step string

// Conversation steps.
const (
	StepStart   Step = "start"
	StepName    Step = "name"
	StepEmail   Step = "email"
	StepDOB     Step = "dob"
	StepConfirm Step = "confirm"
)

// State is the conversation's collected data. It travels with the Engine
// rather than any ambient store, so concurrent conversations cannot
// contaminate each other.
type State struct {
	Step      Step
	Name      string
	Email     string
	DOB       string
	Completed bool
}

// ToolCaller runs one registration tool call. Both the one-shot
// protocol.Caller and the long-lived protocol.Session satisfy it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallResult, error)
}

// Engine drives one registration conversation: one user turn in, one
// response out. It is not safe for concurrent use; run one Engine per
// conversation.
type Engine struct {
	log    *slog.Logger
	caller ToolCaller
	state  State
}

// NewEngine creates a conversation engine talking to the given caller.
func NewEngine(log *slog.Logger, caller ToolCaller) *Engine {
	return &Engine{
		log:    log.With("component", "chat", "conversation_id", ulid.Make().String()),
		caller: caller,
		state:  State{Step: StepStart},
	}
}

// State returns a copy of the current conversation state.
func (e *Engine) State() State {
	return e.state
}

// Respond processes one user turn and returns the bot's reply.
func (e *Engine) Respond(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)

	if reply, ok := e.command(ctx, input); ok {
		return reply
	}

	switch e.state.Step {
	case StepStart:
		return WelcomeMessage()

	case StepName:
		return e.handleName(input)

	case StepEmail:
		return e.handleEmail(input)

	case StepDOB:
		return e.handleDOB(ctx, input)

	case StepConfirm:
		return e.handleConfirm(ctx, input)

	default:
		return didNotUnderstand
	}
}

// command recognizes the state-independent commands. It reports false
// when the input is not a command and must go to the step handler.
func (e *Engine) command(ctx context.Context, input string) (string, bool) {
	lower := strings.ToLower(input)

	switch lower {
	case "show registrations", "get all registrations", "list registrations", "view all":
		return e.allRegistrations(ctx), true

	case "statistics", "stats", "show stats":
		return e.statistics(ctx), true

	case "start registration", "register", "new registration", "sign up":
		e.log.Debug("Starting registration flow")

		e.state = State{Step: StepName}

		return "Great! Let's start your registration. 📝\n\nWhat's your full name?", true

	case "help", "/help", "commands":
		return helpMessage, true

	case "search":
		return searchUsage, true
	}

	if strings.HasPrefix(lower, "search ") {
		// The prefix match is case-insensitive but the query keeps the
		// user's original casing.
		return e.search(ctx, strings.TrimSpace(input[len("search "):])), true
	}

	return "", false
}

func (e *Engine) handleName(input string) string {
	if utf8.RuneCountInString(input) < 2 {
		return "Please enter a valid name (at least 2 characters long)."
	}

	e.state.Name = input
	e.state.Step = StepEmail

	return fmt.Sprintf("Nice to meet you, **%s**! 👋\n\nNow, please provide your email address:", input)
}

func (e *Engine) handleEmail(input string) string {
	if !validate.EmailFormatOK(input) {
		return "Please enter a valid email address.\n\n**Format:** user@example.com"
	}

	e.state.Email = input
	e.state.Step = StepDOB

	return "Perfect! 📧\n\nNow please enter your date of birth.\n\n**Format:** YYYY-MM-DD (e.g., 1990-05-15)"
}

func (e *Engine) handleDOB(ctx context.Context, input string) string {
	if !validate.DateFormatOK(input) {
		return "Please enter a valid date in YYYY-MM-DD format.\n\n**Example:** 1990-05-15 for May 15, 1990"
	}

	e.state.DOB = input
	e.state.Step = StepConfirm

	return e.confirmation(ctx)
}

func (e *Engine) handleConfirm(ctx context.Context, input string) string {
	switch strings.ToLower(input) {
	case "confirm", "yes", "y", "correct":
		return e.completeRegistration(ctx)

	case "restart", "no", "n", "edit":
		e.state = State{Step: StepName}

		return "Let's start over! 🔄\n\nWhat's your full name?"

	default:
		return "Please confirm your registration:\n\n" +
			"• Type **'confirm'** to complete registration\n" +
			"• Type **'restart'** to start over"
	}
}

// confirmation renders the collected fields and the server's field-level
// validation verdict, then tells the user how to proceed.
func (e *Engine) confirmation(ctx context.Context) string {
	var b strings.Builder

	b.WriteString("📋 **Please confirm your registration details:**\n\n")
	fmt.Fprintf(&b, "• **Name:** %s\n", e.state.Name)
	fmt.Fprintf(&b, "• **Email:** %s\n", e.state.Email)
	fmt.Fprintf(&b, "• **Date of Birth:** %s\n\n", e.state.DOB)

	reply, err := e.callTool(ctx, tools.NameValidateData, map[string]any{
		"name":  e.state.Name,
		"email": e.state.Email,
		"dob":   e.state.DOB,
	})
	if err != nil {
		fmt.Fprintf(&b, "⚠️ **Validation Error:** %v\n\n", err)
		b.WriteString("Type **'restart'** to try again.")

		return b.String()
	}

	b.WriteString(reply.Text)
	b.WriteString("\n\n")

	if validationPassed(reply) {
		b.WriteString("✅ **Everything looks good!**\n\n")
		b.WriteString("• Type **'confirm'** to complete registration\n")
		b.WriteString("• Type **'restart'** to start over")
	} else {
		b.WriteString("❌ **Please fix the issues above before proceeding.**\n\n")
		b.WriteString("Type **'restart'** to start over.")
	}

	return b.String()
}

// completeRegistration performs the add at the confirm step. Any failure,
// domain or transport, keeps the collected fields and the confirm step so
// the user can retry or restart.
func (e *Engine) completeRegistration(ctx context.Context) string {
	reply, err := e.callTool(ctx, tools.NameAddRegistration, map[string]any{
		"name":  e.state.Name,
		"email": e.state.Email,
		"dob":   e.state.DOB,
	})
	if err != nil {
		return registrationFailed(err.Error())
	}

	if !additionSucceeded(reply) {
		return registrationFailed(reply.Text)
	}

	e.log.Info("Registration completed", "email", e.state.Email)

	e.state = State{Step: StepStart, Completed: true}

	return fmt.Sprintf("🎉 **Registration Completed Successfully!**\n\n%s\n\n", reply.Text) +
		"**What's next?**\n" +
		"• Type **'register'** for a new registration\n" +
		"• Type **'show registrations'** to view all users\n" +
		"• Type **'statistics'** to view registration stats"
}

func (e *Engine) allRegistrations(ctx context.Context) string {
	reply, err := e.callTool(ctx, tools.NameGetAllRegistration, map[string]any{})
	if err != nil {
		return fmt.Sprintf("❌ **Error:** %v", err)
	}

	return reply.Text
}

func (e *Engine) statistics(ctx context.Context) string {
	reply, err := e.callTool(ctx, tools.NameGetStatistics, map[string]any{})
	if err != nil {
		return fmt.Sprintf("❌ **Statistics Error:** %v", err)
	}

	return reply.Text
}

func (e *Engine) search(ctx context.Context, query string) string {
	if query == "" {
		return searchUsage
	}

	reply, err := e.callTool(ctx, tools.NameSearchRegistration, map[string]any{"query": query})
	if err != nil {
		return fmt.Sprintf("❌ **Search Error:** %v", err)
	}

	return reply.Text
}

func (e *Engine) callTool(ctx context.Context, name string, args map[string]any) (*protocol.CallResult, error) {
	e.log.Debug("Calling registration tool", "tool", name)

	reply, err := e.caller.CallTool(ctx, name, args)
	if err != nil {
		e.log.Warn("Tool call failed", "tool", name, "error", err)

		return nil, err
	}

	return reply, nil
}

// validationPassed decides the confirm summary's verdict: the tagged
// outcome when present, the prose marker otherwise.
func validationPassed(reply *protocol.CallResult) bool {
	if reply.Outcome != nil {
		return reply.Outcome.OK()
	}

	return strings.Contains(reply.Text, "Ready for registration")
}

// additionSucceeded decides whether the add went through: the tagged
// outcome when present, the wire-level error flag otherwise.
func additionSucceeded(reply *protocol.CallResult) bool {
	if reply.Outcome != nil {
		return reply.Outcome.OK()
	}

	return !reply.IsError
}

func registrationFailed(detail string) string {
	return fmt.Sprintf("❌ **Registration Failed**\n\n%s\n\nPlease try again by typing **'restart'**.", detail)
}

// WelcomeMessage is the greeting shown on the first turn and whenever an
// idle conversation receives non-command input.
func WelcomeMessage() string {
	return welcomeMessage
}

const welcomeMessage = `👋 **Welcome to the Registration System!**

I can help you with:

🆕 **Registration**
• Type **'register'** to start a new registration

📋 **View Data**
• Type **'show registrations'** to view all registered users
• Type **'statistics'** to see registration statistics
• Type **'search [query]'** to search by name or email

❓ **Help**
• Type **'help'** to see all available commands

What would you like to do?`

const searchUsage = "Please provide a search query.\n\n**Usage:** search [name or email]"

const didNotUnderstand = "I didn't understand that. 🤔\n\n" +
	"Type **'help'** to see available commands or **'register'** to start a new registration."

const helpMessage = "🤖 **Registration Chatbot Help**\n\n" +
	"**📝 Registration Commands:**\n" +
	"• `register` or `start registration` - Begin new user registration\n" +
	"• `restart` - Start registration over during the process\n\n" +
	"**📋 Data Commands:**\n" +
	"• `show registrations` or `list registrations` - View all registered users\n" +
	"• `search [query]` - Search by name or email (e.g., \"search john\" or \"search @gmail\")\n" +
	"• `statistics` or `stats` - View registration statistics\n\n" +
	"**❓ General Commands:**\n" +
	"• `help` or `commands` - Show this help message\n\n" +
	"**🔄 Registration Process:**\n" +
	"1. **Name** - Provide your full name (2+ characters)\n" +
	"2. **Email** - Enter a valid email address\n" +
	"3. **Date of Birth** - Enter in YYYY-MM-DD format (e.g., 1990-05-15)\n" +
	"4. **Confirmation** - Review and confirm your details\n\n" +
	"**💡 Tips:**\n" +
	"• All data is stored locally in a CSV file\n" +
	"• Email addresses must be unique\n" +
	"• Use natural language - I understand variations of commands\n\n" +
	"What would you like to do?"
