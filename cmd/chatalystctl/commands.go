package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/api"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
)

func init() {
	syncCmd.AddCommand(syncStartCmd, syncStopCmd)
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsStartCmd, chatsGroupCmd, chatsDeleteCmd, chatsMuteCmd, chatsTypingCmd)
	msgCmd.AddCommand(msgListCmd, msgSendCmd, msgResendCmd, msgEditCmd, msgDeleteCmd, msgReactCmd, msgReadCmd, msgSearchCmd)
	usersCmd.AddCommand(usersListCmd)
	personaCmd.AddCommand(personaCreateCmd, personaDeleteCmd)
	meCmd.AddCommand(meProfileCmd, mePresenceCmd, mePushTokenCmd, mePremiumCmd)
	rootCmd.AddCommand(statusCmd, syncCmd, watchCmd, chatsCmd, msgCmd, usersCmd, personaCmd, meCmd)

	chatsListCmd.Flags().Int("limit", 100, "maximum conversations")
	chatsGroupCmd.Flags().String("topic", "", "group topic")
	chatsMuteCmd.Flags().Duration("for", 0, "mute for a duration; 0 mutes forever")
	chatsMuteCmd.Flags().Bool("off", false, "unmute")
	msgListCmd.Flags().Int("limit", 50, "maximum messages")
	msgSendCmd.Flags().String("reply-to", "", "message id to reply to")
	msgSearchCmd.Flags().String("chat", "", "restrict to one conversation")
	usersListCmd.Flags().Bool("ai", false, "only AI personas")
	personaCreateCmd.Flags().String("personality", "", "persona personality")
	personaCreateCmd.Flags().String("bio", "", "persona bio")
	personaCreateCmd.Flags().String("backstory", "", "persona background story")
	personaCreateCmd.Flags().String("interests", "", "persona interests")
	personaCreateCmd.Flags().String("style", "", "persona speaking style")
	meProfileCmd.Flags().String("name", "", "display name")
	meProfileCmd.Flags().String("bio", "", "bio")
	meProfileCmd.Flags().String("avatar", "", "avatar url")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Session.GetStatus(ctx, &api.GetStatusRequest{})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			writeStatus(cmd.OutOrStdout(), resp, time.Now())
			return nil
		})
	},
}

func writeStatus(w io.Writer, s *api.GetStatusResponse, now time.Time) {
	principal := s.Principal
	if principal == "" {
		principal = "-"
	}
	since := humanize.RelTime(time.UnixMilli(s.StateSinceUnixMs), now, "ago", "from now")
	fmt.Fprintf(w, "Session:       %s\n", s.Session)
	fmt.Fprintf(w, "Principal:     %s\n", principal)
	fmt.Fprintf(w, "State:         %s (since %s)\n", s.State, since)
	fmt.Fprintf(w, "Uptime:        %s\n", (time.Duration(s.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Fprintf(w, "Users:         %s\n", humanize.Comma(s.Users))
	fmt.Fprintf(w, "Conversations: %s\n", humanize.Comma(s.Conversations))
	fmt.Fprintf(w, "Pending:       %s\n", humanize.Comma(s.Pending))
	fmt.Fprintf(w, "Listeners:     %d\n", s.Listeners)
}

var syncCmd = &cobra.Command{Use: "sync", Short: "Start or stop the sync session"}

var syncStartCmd = &cobra.Command{
	Use:   "start <principal>",
	Short: "Sync as principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Sync.StartSync(ctx, &api.StartSyncRequest{Principal: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "State: %s\n", resp.State)
			return nil
		})
	},
}

var syncStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop syncing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Sync.StopSync(ctx, &api.StopSyncRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "State: %s\n", resp.State)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [prefix]",
	Short: "Stream daemon events, optionally filtered by kind prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		events, err := c.Sync.WatchEvents(cmd.Context(), &api.WatchEventsRequest{Prefix: prefix})
		if err != nil {
			return err
		}
		for {
			env, err := events.Recv()
			if err != nil {
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			}
			if jsonFlag {
				outputJSON(env.AsMap())
				continue
			}
			fields := env.GetFields()
			ts := time.UnixMilli(int64(fields["occurredAtUnixMs"].GetNumberValue()))
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s %s\n",
				ts.Format("15:04:05.000"), fields["kind"].GetStringValue(), compact(fields["payload"].AsInterface()))
		}
	},
}

func compact(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

var chatsCmd = &cobra.Command{Use: "chats", Short: "Manage conversations"}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Conversation.List(ctx, &api.ListConversationsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			if len(resp.Conversations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
				return nil
			}
			now := time.Now()
			for _, s := range resp.Conversations {
				fmt.Fprintln(cmd.OutOrStdout(), formatSummary(s, now))
			}
			return nil
		})
	},
}

// formatSummary renders one conversation list line.
func formatSummary(s api.ConversationSummary, now time.Time) string {
	var flags []string
	if s.Group {
		flags = append(flags, "group")
	}
	if s.Muted {
		flags = append(flags, "muted")
	}
	if s.Pending > 0 {
		flags = append(flags, fmt.Sprintf("%d pending", s.Pending))
	}
	if len(s.Typing) > 0 {
		flags = append(flags, strings.Join(s.Typing, ",")+" typing")
	}
	when := "never"
	if s.LastMessageAt > 0 {
		when = humanize.RelTime(time.UnixMilli(s.LastMessageAt), now, "ago", "from now")
	}
	line := fmt.Sprintf("%-28s %-24s %-16s", s.ID, s.Name, when)
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	if s.LastPreview != "" {
		line += "  " + s.LastPreview
	}
	return line
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Conversation.Get(ctx, &api.GetConversationRequest{ID: args[0]})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			now := time.Now()
			fmt.Fprintln(cmd.OutOrStdout(), formatSummary(resp.Summary, now))
			for _, m := range resp.Messages {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
			}
			return nil
		})
	},
}

// formatMessage renders one message line.
func formatMessage(m api.MessageView) string {
	ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
	body := model.Preview(m.Message, 0)
	if m.Type == model.TypeImage {
		body = "[image] " + m.Content
	}
	line := fmt.Sprintf("%s  %-16s %s", ts, m.SenderID, body)
	if m.Edited {
		line += " (edited)"
	}
	switch {
	case m.Failure != "":
		line += " [failed: " + m.Failure + "]"
	case m.Pending:
		line += " [pending]"
	}
	return line
}

var chatsStartCmd = &cobra.Command{
	Use:   "start <user>",
	Short: "Open (or reuse) a 1:1 conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Conversation.StartChat(ctx, &api.StartChatRequest{PeerID: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.ConversationID)
			return nil
		})
	},
}

var chatsGroupCmd = &cobra.Command{
	Use:   "group <name> <member>...",
	Short: "Create a group conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Conversation.CreateGroup(ctx, &api.CreateGroupRequest{Name: args[0], Topic: topic, Members: args[1:]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.ConversationID)
			return nil
		})
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a group, or leave a 1:1",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Conversation.Delete(ctx, &api.DeleteConversationRequest{ID: args[0]})
			return err
		})
	},
}

var chatsMuteCmd = &cobra.Command{
	Use:   "mute <id>",
	Short: "Mute or unmute a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _ := cmd.Flags().GetDuration("for")
		off, _ := cmd.Flags().GetBool("off")
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Conversation.SetMute(ctx, &api.SetMuteRequest{ID: args[0], MutedUntil: muteValue(d, off, time.Now())})
			return err
		})
	},
}

// muteValue converts CLI flags into mutedUntil.
func muteValue(d time.Duration, off bool, now time.Time) int64 {
	switch {
	case off:
		return 0
	case d <= 0:
		return model.MutedForever
	default:
		return now.Add(d).UnixMilli()
	}
}

var chatsTypingCmd = &cobra.Command{
	Use:   "typing <id> <on|off>",
	Short: "Set the principal's typing indicator",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Conversation.SetTyping(ctx, &api.SetTypingRequest{ID: args[0], Typing: on})
			return err
		})
	},
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

var msgCmd = &cobra.Command{Use: "msg", Short: "Read and write messages"}

var msgListCmd = &cobra.Command{
	Use:   "list <conversation> [before-ts]",
	Short: "List messages, newest first",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var before int64
		if len(args) == 2 {
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp %q", args[1])
			}
			before = v
		}
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Message.List(ctx, &api.ListMessagesRequest{ConversationID: args[0], BeforeTs: before, Limit: limit})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			for _, m := range resp.Messages {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
			}
			return nil
		})
	},
}

var msgSendCmd = &cobra.Command{
	Use:   "send <conversation> <text>...",
	Short: "Send a text message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		replyTo, _ := cmd.Flags().GetString("reply-to")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Message.Send(ctx, &api.SendMessageRequest{
				ConversationID: args[0],
				Content:        strings.Join(args[1:], " "),
				ReplyToID:      replyTo,
			})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message.ID)
			return nil
		})
	},
}

var msgResendCmd = &cobra.Command{
	Use:   "resend <conversation> <message>",
	Short: "Retry a pending message",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Message.Resend(ctx, &api.ResendMessageRequest{ConversationID: args[0], MessageID: args[1]})
			return err
		})
	},
}

var msgEditCmd = &cobra.Command{
	Use:   "edit <conversation> <message> <text>...",
	Short: "Edit a message",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Message.Edit(ctx, &api.EditMessageRequest{
				ConversationID: args[0],
				MessageID:      args[1],
				Content:        strings.Join(args[2:], " "),
			})
			return err
		})
	},
}

var msgDeleteCmd = &cobra.Command{
	Use:   "delete <conversation> <message>...",
	Short: "Delete messages",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Message.Delete(ctx, &api.DeleteMessagesRequest{ConversationID: args[0], MessageIDs: args[1:]})
			return err
		})
	},
}

var msgReactCmd = &cobra.Command{
	Use:   "react <conversation> <message> <emoji>",
	Short: "Toggle a reaction",
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.Message.React(ctx, &api.ReactRequest{ConversationID: args[0], MessageID: args[1], Emoji: args[2]})
			return err
		})
	},
}

var msgReadCmd = &cobra.Command{
	Use:   "read <conversation>",
	Short: "Mark a conversation read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Message.MarkRead(ctx, &api.MarkReadRequest{ConversationID: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d message(s) read\n", resp.Marked)
			return nil
		})
	},
}

var msgSearchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Full-text search over cached messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, _ := cmd.Flags().GetString("chat")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.Message.Search(ctx, &api.SearchMessagesRequest{Query: strings.Join(args, " "), ConversationID: chat})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			for _, r := range resp.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-16s %s\n",
					r.ConversationID, time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04"), r.SenderID, r.Snippet)
			}
			return nil
		})
	},
}

var usersCmd = &cobra.Command{Use: "users", Short: "Cached users"}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		aiOnly, _ := cmd.Flags().GetBool("ai")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.User.ListUsers(ctx, &api.ListUsersRequest{AIOnly: aiOnly})
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(resp)
				return nil
			}
			now := time.Now()
			for _, u := range resp.Users {
				fmt.Fprintln(cmd.OutOrStdout(), formatUser(u, now))
			}
			return nil
		})
	},
}

// formatUser renders one user line with presence.
func formatUser(u model.User, now time.Time) string {
	presence := "offline"
	switch {
	case u.IsAI:
		presence = "ai"
	case u.Online:
		presence = "online"
	case u.LastSeen > 0:
		presence = "seen " + humanize.RelTime(time.UnixMilli(u.LastSeen), now, "ago", "from now")
	}
	return fmt.Sprintf("%-28s %-20s %s", u.UID, u.Name, presence)
}

var personaCmd = &cobra.Command{Use: "persona", Short: "Manage AI personas"}

var personaCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an AI persona owned by the principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personality, _ := cmd.Flags().GetString("personality")
		bio, _ := cmd.Flags().GetString("bio")
		backstory, _ := cmd.Flags().GetString("backstory")
		interests, _ := cmd.Flags().GetString("interests")
		style, _ := cmd.Flags().GetString("style")
		return run(func(ctx context.Context, c *api.Client) error {
			resp, err := c.User.CreatePersona(ctx, &api.CreatePersonaRequest{Persona: model.User{
				Name:            args[0],
				Personality:     personality,
				Bio:             bio,
				BackgroundStory: backstory,
				Interests:       interests,
				SpeakingStyle:   style,
			}})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.UID)
			return nil
		})
	},
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete <uid>",
	Short: "Delete a persona you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.User.DeletePersona(ctx, &api.DeletePersonaRequest{UID: args[0]})
			return err
		})
	},
}

var meCmd = &cobra.Command{Use: "me", Short: "The principal's own profile"}

var meProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update name, bio or avatar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		bio, _ := cmd.Flags().GetString("bio")
		avatar, _ := cmd.Flags().GetString("avatar")
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.User.UpdateProfile(ctx, &api.UpdateProfileRequest{Name: name, Bio: bio, AvatarURL: avatar})
			return err
		})
	},
}

var mePresenceCmd = &cobra.Command{
	Use:   "presence <online|offline>",
	Short: "Set presence",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var online bool
		switch args[0] {
		case "online":
			online = true
		case "offline":
		default:
			return fmt.Errorf("expected online or offline, got %q", args[0])
		}
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.User.SetPresence(ctx, &api.SetPresenceRequest{Online: online})
			return err
		})
	},
}

var mePushTokenCmd = &cobra.Command{
	Use:   "push-token [token]",
	Short: "Set the device push token; no argument clears it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		token := ""
		if len(args) == 1 {
			token = args[0]
		}
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.User.SetPushToken(ctx, &api.SetPushTokenRequest{Token: token})
			return err
		})
	},
}

var mePremiumCmd = &cobra.Command{
	Use:   "premium",
	Short: "Upgrade the principal to premium",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(func(ctx context.Context, c *api.Client) error {
			_, err := c.User.UpgradePremium(ctx, &api.UpgradePremiumRequest{})
			return err
		})
	},
}
