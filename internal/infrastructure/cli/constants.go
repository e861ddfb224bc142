package cli

// Error messages
const (
	errKeyFileRequired = "--key-file is required for privateKey auth"
	errQueryRequired   = "search query is required"
)

// Informational messages
const (
	msgNoServers         = "No servers registered."
	msgNoHistoryRecorded = "No history recorded yet."
	msgArchiveDisabled   = "History archive is disabled (history.archive.enabled)."
	msgCancelled         = "Cancelled."
	msgHistoryCleared    = "History cleared."
)
