package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2/clientcredentials"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
)

const defaultScope = "https://outlook.office365.com/.default"

// app carries the configuration shared by every command.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:           "ewsctl",
		Short:         "Mailbox web service client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "Config file (default $HOME/.ewsctl.yaml)")
	pflags.String("endpoint", "", "Service URL, e.g. https://outlook.office365.com/EWS/Exchange.asmx")
	pflags.String("version", string(ews.Exchange2013SP1), "Requested protocol version")
	pflags.String("username", "", "User name for basic authentication")
	pflags.String("password", "", "Password for basic authentication")
	pflags.String("token", "", "OAuth access token")
	pflags.String("client-id", "", "OAuth client id (client credentials grant)")
	pflags.String("client-secret", "", "OAuth client secret")
	pflags.String("token-url", "", "OAuth token endpoint")
	pflags.StringSlice("scopes", []string{defaultScope}, "OAuth scopes")
	pflags.String("impersonate", "", "SMTP address to impersonate")
	pflags.String("timezone", "", "Time zone id sent with every call")
	pflags.Duration("timeout", 100*time.Second, "Timeout of one-shot calls")
	pflags.Bool("insecure", false, "Skip TLS certificate verification")
	pflags.Bool("trace", false, "Log request and response envelopes")
	pflags.String("log-level", "warn", "Log level: debug, info, warn, error")
	_ = a.v.BindPFlags(pflags)

	a.v.SetEnvPrefix("ews")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(
		cmdFolder(a),
		cmdFind(a),
		cmdGetItem(a),
		cmdStream(a),
	)
	return rootCmd
}

// init reads the config file and sets up logging.
func (a *app) init() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	} else {
		a.v.SetConfigName(".ewsctl")
		a.v.AddConfigPath("$HOME")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return errors.Wrap(err, "read config")
			}
		}
	}

	logger, err := newLogger(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// newClient builds a client from the configuration.
func (a *app) newClient(cmd *cobra.Command) (*client.Client, error) {
	opts, err := a.clientOptions(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(opts...)
}

func (a *app) clientOptions(cmd *cobra.Command) ([]client.Option, error) {
	v := a.v
	version, err := ews.ParseVersion(v.GetString("version"))
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithEndpoint(v.GetString("endpoint")),
		client.WithVersion(version),
		client.WithLogger(a.logger),
		client.WithTimeout(v.GetDuration("timeout")),
		client.WithInsecureSkipVerify(v.GetBool("insecure")),
		client.WithTraceEnabled(v.GetBool("trace")),
	}
	if s := v.GetString("impersonate"); s != "" {
		opts = append(opts, client.WithImpersonation(s))
	}
	if s := v.GetString("timezone"); s != "" {
		opts = append(opts, client.WithTimeZone(s))
	}

	switch {
	case v.GetString("client-id") != "":
		if v.GetString("token-url") == "" {
			return nil, errors.New("--token-url is required with --client-id")
		}
		opts = append(opts, client.WithClientCredentials(cmd.Context(), &clientcredentials.Config{
			ClientID:     v.GetString("client-id"),
			ClientSecret: v.GetString("client-secret"),
			TokenURL:     v.GetString("token-url"),
			Scopes:       v.GetStringSlice("scopes"),
		}))
	case v.GetString("token") != "":
		opts = append(opts, client.WithBearerToken(v.GetString("token")))
	case v.GetString("username") != "":
		opts = append(opts, client.WithBasicAuth(v.GetString("username"), v.GetString("password")))
	}
	return opts, nil
}

var wellKnownFolders = []ews.WellKnownFolder{
	ews.FolderInbox,
	ews.FolderCalendar,
	ews.FolderContacts,
	ews.FolderDeletedItems,
	ews.FolderDrafts,
	ews.FolderJunkEmail,
	ews.FolderMsgFolderRoot,
	ews.FolderNotes,
	ews.FolderOutbox,
	ews.FolderRoot,
	ews.FolderSentItems,
	ews.FolderTasks,
}

// parseFolder accepts a distinguished folder name or a server id.
func parseFolder(s string) client.FolderID {
	name := strings.ToLower(s)
	for _, f := range wellKnownFolders {
		if string(f) == name {
			return client.WellKnown(f)
		}
	}
	return client.FolderID{ID: s}
}

// parseEvents accepts event names with or without the Event suffix.
func parseEvents(names []string) ([]ews.EventType, error) {
	known := []ews.EventType{
		ews.EventNewMail,
		ews.EventCreated,
		ews.EventDeleted,
		ews.EventModified,
		ews.EventMoved,
		ews.EventCopied,
		ews.EventFreeBusyChanged,
	}
	var events []ews.EventType
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, "Event") {
			name += "Event"
		}
		found := false
		for _, ev := range known {
			if strings.EqualFold(string(ev), name) {
				events = append(events, ev)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Errorf("unknown event %q", name)
		}
	}
	if len(events) == 0 {
		return nil, errors.New("at least one event is required")
	}
	return events, nil
}
