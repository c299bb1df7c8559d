package telegram

import "context"

// handlerFunc executes one bot command. For authed commands req.token holds
// a just-refreshed access token.
type handlerFunc func(ctx context.Context, b *Bot, req *request) error

// command is one entry of the typed command registry built at startup.
type command struct {
	name    string
	desc    string
	authed  bool
	handler handlerFunc
}

// commandTable declares every command the bot understands. Order is the
// order shown by /help and announced to Telegram.
func commandTable() []command {
	return []command{
		{name: "start", desc: "Starts Notify", handler: handleHelp},
		{name: "help", desc: "Provides help for using Notify", handler: handleHelp},
		{name: "login", desc: "Authorize Notify to access your Spotify account", handler: handleLogin},
		{name: "logout", desc: "Permanently deletes your data from Notify", handler: handleLogout},
		{name: "notify", desc: "Start tracking a playlist to get notified when someone else adds or removes a song from it", authed: true, handler: handleNotify},
		{name: "removenotify", desc: "Stop tracking a playlist", authed: true, handler: handleRemoveNotify},
		{name: "shownotify", desc: "Get a list of the playlists you're currently tracking", authed: true, handler: handleShowNotify},
		{name: "lastplayed", desc: "Get the last song you played", authed: true, handler: handleLastPlayed},
		{name: "playlists", desc: "Get a list of the playlists you own", authed: true, handler: handlePlaylists},
		{name: "topten", desc: "Get a list of the top 10 songs you've listened to the most lately", authed: true, handler: handleTopTen},
		{name: "throwback", desc: "Get a track you had on repeat a while ago", authed: true, handler: handleThrowback},
	}
}
