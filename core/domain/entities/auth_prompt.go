package entities

// AuthPrompt represents a prompt-response pair during interactive login
type AuthPrompt struct {
	WaitFor string // prompt to wait for
	SendCmd string // command to send (empty means just wait)
}
