package telegram

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rafacovez/notify/internal/flow"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
)

func handleHelp(ctx context.Context, b *Bot, req *request) error {
	var sb strings.Builder
	sb.WriteString("You can try one of these commands out:\n")
	for _, cmd := range b.commands {
		fmt.Fprintf(&sb, "\n/%s: %s", cmd.name, cmd.desc)
	}
	b.reply(req.chatID, sb.String(), false)
	return nil
}

func handleLogin(ctx context.Context, b *Bot, req *request) error {
	exists, err := b.store.UserExists(ctx, req.userID)
	if err != nil {
		return err
	}
	if exists {
		b.reply(req.chatID, "You're already logged in.", false)
		return nil
	}
	b.sendLoginPrompt(req)
	return nil
}

func handleLogout(ctx context.Context, b *Bot, req *request) error {
	exists, err := b.store.UserExists(ctx, req.userID)
	if err != nil {
		return err
	}
	if !exists {
		b.reply(req.chatID, "You're not logged in yet...", false)
		return nil
	}

	// Cascades to the user's tracking entries.
	if err := b.store.DeleteUser(ctx, req.userID); err != nil {
		return err
	}
	b.reply(req.chatID, "Your data has been deleted from Notify. Sorry to see you go!", false)
	return nil
}

func handleNotify(ctx context.Context, b *Bot, req *request) error {
	if args := strings.TrimSpace(req.args); args != "" {
		playlistID := spotify.ExtractPlaylistID(args)
		if playlistID == "" {
			return fmt.Errorf("%w: %q", shared.ErrInvalidInput, args)
		}

		playlist, err := b.registry.Add(ctx, req.token, req.userID, playlistID)
		if err != nil {
			return err
		}
		b.reply(req.chatID, fmt.Sprintf("Now tracking the playlist: %s", playlist.Name), false)
		return nil
	}

	return b.sendSelection(ctx, req, flow.ActionAdd)
}

func handleRemoveNotify(ctx context.Context, b *Bot, req *request) error {
	if args := strings.TrimSpace(req.args); args != "" {
		playlistID := spotify.ExtractPlaylistID(args)
		if playlistID == "" {
			return fmt.Errorf("%w: %q", shared.ErrInvalidInput, args)
		}

		if err := b.registry.Remove(ctx, req.userID, playlistID); err != nil {
			return err
		}
		b.reply(req.chatID, "Stopped tracking the playlist.", false)
		return nil
	}

	return b.sendSelection(ctx, req, flow.ActionRemove)
}

// sendSelection opens a selection dialogue at offset 0.
func (b *Bot) sendSelection(ctx context.Context, req *request, action flow.Action) error {
	session := flow.NewSession(action, b.pageSize)

	page, err := b.client.UserPlaylists(ctx, req.token, session.FetchLimit(), session.Offset)
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		b.reply(req.chatID, "You don't have any playlists in your library yet.", false)
		return nil
	}

	markup := toInlineKeyboard(session.Page(toItems(page.Items)))
	return b.sendWithKeyboard(req.chatID, "Select a playlist", markup)
}

func handleShowNotify(ctx context.Context, b *Bot, req *request) error {
	ids, err := b.registry.List(ctx, req.userID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		b.reply(req.chatID, "You're not tracking any playlists.", false)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("You're currently tracking these playlists:\n")
	for _, id := range ids {
		playlist, err := b.client.GetPlaylist(ctx, req.token, id)
		if err != nil {
			// The reconciler heals missing playlists; show the id for now.
			fmt.Fprintf(&sb, "- %s\n", id)
			continue
		}
		fmt.Fprintf(&sb, "- <a href='%s'>%s</a>\n", playlist.ExternalURLs.Spotify, playlist.Name)
	}

	b.reply(req.chatID, sb.String(), false)
	return nil
}

func handleLastPlayed(ctx context.Context, b *Bot, req *request) error {
	track, err := b.client.CurrentlyPlaying(ctx, req.token)
	if err != nil {
		return err
	}

	if track == nil {
		history, err := b.client.RecentlyPlayed(ctx, req.token, 1)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			b.reply(req.chatID, "Looks like you haven't played anything yet.", false)
			return nil
		}
		track = &history[0].Track
	}

	b.reply(req.chatID, fmt.Sprintf("You last played %s.", trackLink(*track)), false)
	return nil
}

func handlePlaylists(ctx context.Context, b *Bot, req *request) error {
	playlists, err := b.client.AllUserPlaylists(ctx, req.token)
	if err != nil {
		return err
	}
	if len(playlists) == 0 {
		b.reply(req.chatID, "You don't have any playlists in your library yet.", false)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Here's a list of the playlists in your library:\n")
	for _, playlist := range playlists {
		fmt.Fprintf(&sb, "\n<a href='%s'>%s</a>", playlist.ExternalURLs.Spotify, playlist.Name)
	}

	b.reply(req.chatID, sb.String(), false)
	return nil
}

func handleTopTen(ctx context.Context, b *Bot, req *request) error {
	tracks, err := b.client.TopTracks(ctx, req.token, "short_term", 10)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		b.reply(req.chatID, "Not enough listening history yet. Come back later!", false)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("⭐ You've got these on repeat lately:\n")
	for i, track := range tracks {
		fmt.Fprintf(&sb, "\n%d- %s", i+1, trackLink(track))
	}

	b.reply(req.chatID, sb.String(), false)
	return nil
}

func handleThrowback(ctx context.Context, b *Bot, req *request) error {
	tracks, err := b.client.TopTracks(ctx, req.token, "long_term", 50)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		b.reply(req.chatID, "Not enough listening history yet. Come back later!", false)
		return nil
	}

	track := tracks[rand.Intn(len(tracks))]
	b.reply(req.chatID, fmt.Sprintf("⏳ Remember %s? You had it on repeat a while ago!", trackLink(track)), false)
	return nil
}

// trackLink formats a track and its primary artist as HTML links.
func trackLink(track spotify.Track) string {
	if len(track.Artists) == 0 {
		return fmt.Sprintf("<a href='%s'>%s</a>", track.ExternalURLs.Spotify, track.Name)
	}
	artist := track.Artists[0]
	return fmt.Sprintf("<a href='%s'>%s</a> by <a href='%s'>%s</a>",
		track.ExternalURLs.Spotify, track.Name, artist.ExternalURLs.Spotify, artist.Name)
}
