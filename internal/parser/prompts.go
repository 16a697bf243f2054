package parser

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// buildTransactionPrompt returns the system prompt for a single transaction message.
func buildTransactionPrompt(today civil.Date, currency string) string {
	return "You are a personal finance assistant. Your ONLY job is to turn the user's message " +
		"(often colloquial Arabic) into one JSON object describing a single financial transaction.\n\n" +
		"Today's date is: " + today.String() + "\n\n" +
		"Rules:\n" +
		"1. Decide whether it is an \"expense\" or an \"income\".\n" +
		"2. Extract the amount as a positive number.\n" +
		"3. Pick the category from this list: " + strings.Join(domain.Categories, ", ") + ".\n" +
		"4. Extract or infer the date. \"yesterday\" / \"امبارح\" means the day before today.\n" +
		"5. Extract a short description if one is mentioned.\n" +
		"6. Currency is " + currency + " unless the user names another one.\n\n" +
		"Reply ONLY with valid JSON, no markdown, no explanation:\n" +
		"{\"type\": \"expense\" | \"income\", \"amount\": <number>, \"category\": \"<category>\", " +
		"\"description\": \"<short description or null>\", \"date\": \"YYYY-MM-DD\", \"currency\": \"<ISO code>\"}\n\n" +
		"If the message cannot be understood, reply with:\n" +
		"{\"error\": \"unclear\", \"question\": \"<a short clarifying question in the user's language>\"}\n"
}

// buildRecurringPrompt returns the system prompt for a recurring payment description.
func buildRecurringPrompt(today civil.Date, currency string) string {
	return "You are a personal finance assistant. Turn the user's message into one JSON object " +
		"describing a recurring payment.\n\n" +
		"Today's date is: " + today.String() + "\n\n" +
		"Rules:\n" +
		"1. Extract the payment name.\n" +
		"2. Extract the amount as a positive number.\n" +
		"3. Frequency is one of \"daily\", \"weekly\", \"monthly\", \"yearly\".\n" +
		"4. Determine the next payment date. If none is mentioned and it is monthly, use the 1st of next month.\n" +
		"5. Pick a category from this list: " + strings.Join(domain.Categories, ", ") + ".\n" +
		"6. Currency is " + currency + " unless the user names another one.\n\n" +
		"Reply ONLY with valid JSON, no markdown, no explanation:\n" +
		"{\"name\": \"<name>\", \"amount\": <number>, \"frequency\": \"monthly\", " +
		"\"next_due_date\": \"YYYY-MM-DD\", \"category\": \"<category>\", \"currency\": \"<ISO code>\"}\n\n" +
		"If the message cannot be understood, reply with:\n" +
		"{\"error\": \"unclear\", \"question\": \"<a short clarifying question in the user's language>\"}\n"
}
