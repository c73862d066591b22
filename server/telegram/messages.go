package telegram

import "github.com/existlabs/gptbridge/errors"

// Fixed user-facing texts. Failure replies are deliberately generic and
// carry no internal detail.
const (
	ReplyWelcome = "Hi! I relay your messages to a configured language model. Just send me any message and I'll answer."

	ReplyHelp = "Send me any text message and I'll reply.\n\n" +
		"Commands:\n" +
		"/start - Start the conversation\n" +
		"/help - Show this help"

	ReplyUnknownCommand = "Unknown command. Use /help to see what I can do."

	replyRateLimited = "Too many requests right now. Please try again shortly."

	replyUnavailable = "The service is temporarily unavailable. Please try again later."

	replyInvalidInput = "Sorry, I couldn't process that message. Please try rephrasing it."

	replyUnknown = "Something went wrong. Please try again later."
)

// ReplyFor maps a failure category to the single fixed message shown to
// the user.
func ReplyFor(t errors.ErrorType) string {
	switch t {
	case errors.RateLimited:
		return replyRateLimited
	case errors.TransientNetwork:
		return replyUnavailable
	case errors.MalformedInput, errors.InvalidRequest:
		return replyInvalidInput
	default:
		return replyUnknown
	}
}
