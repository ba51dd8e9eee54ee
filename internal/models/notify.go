package models

// NotifyConfig holds the CallMeBot WhatsApp gateway credentials.
type NotifyConfig struct {
	Phone     string
	APIKey    string
	AdminName string // prefixes every message
}

// NotifyResult holds the result of a notification attempt.
type NotifyResult struct {
	MessageSent bool
	Error       error
}
