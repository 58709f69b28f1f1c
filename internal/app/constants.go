package app

const (
	Name           = "meshterm"
	ConfigFilename = "config.json"
	LogFilename    = "meshterm.log"
	SessionsDir    = "sessions"
	DefaultSession = "default"

	RecentMessagesLoad = 200
)
