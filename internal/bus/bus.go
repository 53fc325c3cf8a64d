package bus

// Notification is a message for one chat, produced by the tracker watcher and
// delivered by the bot.
type Notification struct {
	ChatID int64
	Text   string
}
