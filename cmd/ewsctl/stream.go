package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
	"github.com/meszmate/ews-go/streaming"
)

func cmdStream(a *app) *cobra.Command {
	var (
		events    []string
		heartbeat time.Duration
		timeout   int
	)
	c := &cobra.Command{
		Use:   "stream [folder]...",
		Short: "Subscribe to folders and print notifications until interrupted",
		Long: `Subscribe to folders (default: every folder of the mailbox) and print
one line per event until interrupted or the stream ends.

The subscription is removed on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			types, err := parseEvents(events)
			if err != nil {
				return err
			}
			folders := make([]client.FolderID, len(args))
			for i, arg := range args {
				folders[i] = parseFolder(arg)
			}
			return runStream(cmd.Context(), a.logger, svc, cmd.OutOrStdout(), folders, types,
				streaming.WithHeartbeat(heartbeat),
				streaming.WithConnectionTimeout(timeout),
			)
		},
	}
	flags := c.Flags()
	flags.StringSliceVar(&events, "events", []string{"NewMail", "Created", "Deleted", "Modified", "Moved", "Copied"}, "Event types to subscribe to")
	flags.DurationVar(&heartbeat, "heartbeat", ews.DefaultHeartbeat, "Disconnect when no data arrives for this long")
	flags.IntVar(&timeout, "stream-timeout", client.DefaultStreamingTimeout, "Lifetime of the streaming request in minutes (1-30)")
	return c
}

// runStream subscribes, streams until ctx is done or the connection drops,
// then unsubscribes.
func runStream(ctx context.Context, logger *zap.Logger, svc *client.Client, out io.Writer,
	folders []client.FolderID, events []ews.EventType, opts ...streaming.Option) error {
	sub, err := svc.SubscribeToStreamingNotifications(ctx, folders, events...)
	if err != nil {
		return err
	}
	logger.Info("subscribed", zap.String("subscription_id", sub.ID))
	defer func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := sub.Unsubscribe(uctx); err != nil {
			logger.Warn("unsubscribe failed", zap.String("subscription_id", sub.ID), zap.Error(err))
		}
	}()

	p := &printer{w: out}
	disconnected := make(chan streaming.DisconnectEvent, 1)
	opts = append([]streaming.Option{
		streaming.WithLogger(logger),
		streaming.WithNotificationHandler(p.notification),
		streaming.WithSubscriptionErrorHandler(func(id string, err error) {
			p.printf("subscription %s failed: %v\n", id, err)
		}),
		streaming.WithDisconnectHandler(func(ev streaming.DisconnectEvent) {
			disconnected <- ev
		}),
	}, opts...)

	conn, err := streaming.New(svc, []string{sub.ID}, opts...)
	if err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		conn.Disconnect()
		<-conn.Done()
		return nil
	case ev := <-disconnected:
		<-conn.Done()
		return ev.Err
	}
}

// printer writes one line per event.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) notification(n *client.Notification) {
	for _, ev := range n.Events {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s subscription=%s", ev.TimeStamp.Format(time.RFC3339), strings.TrimSuffix(string(ev.Type), "Event"), n.SubscriptionID)
		if ev.ItemID != nil {
			fmt.Fprintf(&b, " item=%s", ev.ItemID.ID)
		}
		if ev.FolderID != nil {
			fmt.Fprintf(&b, " folder=%s", ev.FolderID.ID)
		}
		if ev.ParentFolderID != nil {
			fmt.Fprintf(&b, " parent=%s", ev.ParentFolderID.ID)
		}
		if ev.OldItemID != nil {
			fmt.Fprintf(&b, " old_item=%s", ev.OldItemID.ID)
		}
		if ev.Type == ews.EventModified && ev.FolderID != nil {
			fmt.Fprintf(&b, " unread=%d", ev.UnreadCount)
		}
		p.printf("%s\n", b.String())
	}
}
