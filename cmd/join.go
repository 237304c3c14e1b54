package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/AzielCF/az-collab/collab"
	"github.com/AzielCF/az-collab/collab/application"
	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	domainNotification "github.com/AzielCF/az-collab/collab/domain/notification"
	"github.com/AzielCF/az-collab/collab/infrastructure/wschannel"
	"github.com/AzielCF/az-collab/collab/repository"
	coreconfig "github.com/AzielCF/az-collab/core/config"
	"github.com/AzielCF/az-collab/pkg/alert"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	joinUserID      string
	joinDisplayName string
)

var joinCmd = &cobra.Command{
	Use:   "join <resourceType> <resourceId>",
	Short: "Attach a terminal client to a room",
	Long: `Opens a room on the collab server and reads commands from stdin.
A plain line posts a comment. Type /help for the other commands.`,
	Args: cobra.ExactArgs(2),
	Run:  joinRoom,
}

func init() {
	joinCmd.Flags().StringVarP(&joinUserID, "user", "u", os.Getenv("USER"), "identity id used in the room | example: --user=u-ana")
	joinCmd.Flags().StringVarP(&joinDisplayName, "name", "n", "", `display name registered for --user | example: --name="Ana García"`)
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(_ *cobra.Command, args []string) {
	cfg := coreconfig.Global
	if joinUserID == "" {
		logrus.Fatal("[COLLAB] --user is required")
	}

	remote := repository.NewRemoteIdentityRepository(cfg.Client.ServerURL)
	self := identity.Identity{ID: joinUserID, DisplayName: joinDisplayName}
	if self.DisplayName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := remote.Save(ctx, &self); err != nil {
			logrus.Warnf("[DIRECTORY] Could not register %s: %v", self.ID, err)
		}
		cancel()
	}

	directory, err := repository.NewCachedDirectory(remote, 0)
	if err != nil {
		logrus.Fatalf("[DIRECTORY] %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := directory.Refresh(ctx); err != nil {
		logrus.Warnf("[DIRECTORY] Mention candidates unavailable: %v", err)
	}
	cancel()

	var alerter domainNotification.Alerter = alert.Noop{}
	if cfg.Client.DesktopAlerts {
		desktop := alert.NewDesktop()
		if desktop.RequestPermission() == alert.PermissionGranted {
			alerter = desktop
		}
	}

	mgr, err := collab.NewManager(collab.Options{
		Self:      self,
		Directory: directory,
		Channels: func(envelope.Room) channel.Channel {
			return wschannel.New(wschannel.Options{
				BaseURL:      cfg.Client.ServerURL,
				WriteTimeout: cfg.Realtime.WriteTimeout,
			})
		},
		Session: application.SessionConfig{
			Reconnect: application.ReconnectPolicy{
				BaseDelay:   cfg.Realtime.ReconnectBaseDelay,
				MaxDelay:    cfg.Realtime.ReconnectMaxDelay,
				MaxAttempts: cfg.Realtime.ReconnectMaxAttempts,
			},
			TypingDebounce: cfg.Realtime.TypingDebounce,
			TypingExpiry:   cfg.Realtime.TypingExpiry,
		},
		Notifications: application.NotificationCenterOptions{
			Capacity: cfg.Realtime.NotificationCapacity,
			Alerter:  alerter,
		},
	})
	if err != nil {
		logrus.Fatalf("[COLLAB] %v", err)
	}
	defer mgr.Shutdown()

	session, err := mgr.Join(envelope.NewRoom(args[0], args[1]))
	if err != nil {
		logrus.Fatalf("[COLLAB] %v", err)
	}

	con := newConsole(os.Stdout, mgr, session)
	con.watch()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			return
		case line, ok := <-lines:
			if !ok || !con.handle(line) {
				return
			}
		}
	}
}

// console renders a room session on a terminal.
type console struct {
	out     io.Writer
	mgr     *collab.Manager
	session *application.RoomSession
	now     func() time.Time
}

func newConsole(out io.Writer, mgr *collab.Manager, session *application.RoomSession) *console {
	return &console{out: out, mgr: mgr, session: session, now: time.Now}
}

func (c *console) watch() {
	s := c.session
	s.Connection().OnStateChange(func(st application.ConnectionStatus) {
		switch {
		case st.Exhausted:
			fmt.Fprintf(c.out, "* disconnected from %s, type /reconnect to retry\n", st.Room)
		case st.State == channel.StateConnected:
			fmt.Fprintf(c.out, "* connected to %s\n", st.Room)
		case !st.NextRetryAt.IsZero():
			fmt.Fprintf(c.out, "* connection lost, retrying %s\n", humanize.RelTime(c.now(), st.NextRetryAt, "ago", "from now"))
		}
	})
	s.Presence().OnChange(func(change application.PresenceChange) {
		for _, id := range change.Joined {
			if id != c.mgr.Self().ID {
				fmt.Fprintf(c.out, "* %s joined\n", s.DisplayName(id))
			}
		}
		for _, id := range change.Left {
			fmt.Fprintf(c.out, "* %s left\n", s.DisplayName(id))
		}
	})
	s.Typing().OnChange(func(ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(c.out, "* %s typing...\n", c.names(ids))
	})
	s.Subscribe(func(env envelope.Envelope) {
		switch env.Kind {
		case envelope.KindCommentAdded:
			var p envelope.CommentPayload
			if env.DecodePayload(&p) == nil {
				fmt.Fprintf(c.out, "<%s> %s\n", s.DisplayName(env.UserID), p.Body)
			}
		case envelope.KindActivityLogged:
			var p envelope.ActivityPayload
			if env.DecodePayload(&p) == nil {
				fmt.Fprintf(c.out, "* %s %s %s\n", s.DisplayName(env.UserID), p.Action, p.Detail)
			}
		}
	})
}

// handle runs one input line. It returns false when the user quits.
func (c *console) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		if _, ok := c.session.SubmitComment(line); !ok {
			fmt.Fprintln(c.out, "! not sent, the room is not connected")
		}
		return true
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(c.out, "/who  /typing  /activity <action> [detail]  /notifications  /read <id|all>  /clear  /reconnect  /quit")
	case "/who":
		roster := c.session.Presence().Roster()
		fmt.Fprintf(c.out, "* %d online: %s\n", len(roster), c.names(roster))
	case "/typing":
		c.session.Keystroke()
	case "/activity":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "! usage: /activity <action> [detail]")
			return true
		}
		if !c.session.LogActivity(fields[1], strings.Join(fields[2:], " ")) {
			fmt.Fprintln(c.out, "! not sent, the room is not connected")
		}
	case "/notifications":
		c.printNotifications()
	case "/read":
		center := c.mgr.Notifications()
		if len(fields) < 2 || fields[1] == "all" {
			center.MarkAllRead()
		} else if !center.MarkRead(fields[1]) {
			fmt.Fprintf(c.out, "! no notification %s\n", fields[1])
		}
	case "/clear":
		c.mgr.Notifications().ClearAll()
	case "/reconnect":
		c.session.Open()
	default:
		fmt.Fprintf(c.out, "! unknown command %s\n", fields[0])
	}
	return true
}

func (c *console) printNotifications() {
	center := c.mgr.Notifications()
	items := center.List()
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Rank() > items[j].Priority.Rank()
	})
	fmt.Fprintf(c.out, "* %d notifications, %d unread\n", len(items), center.UnreadCount())
	for _, n := range items {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(c.out, "%s [%s] %s: %s (%s) %s\n", mark, n.Priority, n.Title, n.Message, humanize.Time(n.CreatedAt), n.ID)
	}
}

func (c *console) names(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.session.DisplayName(id))
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
