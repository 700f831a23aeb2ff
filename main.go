package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/urfave/cli/v2"

	"github.com/go-pluto/courier/config"
	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/jobs"
	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
)

// Functions

// initLogger initializes a JSON gokit-logger set to the according
// log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

func main() {

	app := &cli.App{
		Name:  "courier",
		Usage: "drive an IMAP session against a server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.toml",
				Usage: "path to configuration file in TOML syntax",
			},
			&cli.StringFlag{
				Name:  "loglevel",
				Value: "info",
				Usage: "default logging level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "connect, authenticate and open a mailbox",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "account name"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "account password"},
					&cli.StringFlag{Name: "mailbox", Value: "INBOX", Usage: "mailbox to open"},
					&cli.BoolFlag{Name: "starttls", Usage: "negotiate STARTTLS before authenticating"},
					&cli.DurationFlag{Name: "wait", Value: 30 * time.Second, Usage: "how long to wait per command"},
				},
				Action: runCheck,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runCheck connects a session, authenticates, opens the requested
// mailbox read-only and reports what the server announced.
func runCheck(c *cli.Context) error {

	logger := initLogger(c.String("loglevel"))

	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		level.Error(logger).Log("msg", "failed to load the config", "err", err)
		return cli.Exit("", 1)
	}

	metrics := NewCourierMetrics(conf.Session.PrometheusAddr)
	go runPromHTTP(logger, conf.Session.PrometheusAddr)

	starttls := c.Bool("starttls")

	events := session.Events{
		StateChanged: func(newState imap.State, oldState imap.State) {
			level.Info(logger).Log("msg", "session state changed", "new", newState, "old", oldState)
		},
		ConnectionFailed: func() {
			level.Error(logger).Log("msg", "connection failed")
		},
		SSLErrors: func(errs []error) {
			for _, e := range errs {
				level.Warn(logger).Log("msg", "certificate verification error", "err", e)
			}
		},
		EncryptionNegotiationResult: func(ok bool, version transport.Version) {
			level.Info(logger).Log("msg", "encryption negotiated", "ok", ok, "version", version)
		},
	}

	sess, err := session.Init(logger, metrics.Session, conf, events)
	if err != nil {
		level.Error(logger).Log("msg", "failed to initialize the session", "err", err)
		return cli.Exit("", 2)
	}
	defer sess.Shutdown()

	if starttls && !conf.Session.ImplicitTLS {
		sess.StartTLS(transport.VersionAny)
	}

	wait := c.Duration("wait")

	login := jobs.NewLogin(c.String("user"), c.String("password"))
	sess.AddJob(login)
	if err := login.Await(wait); err != nil {
		level.Error(logger).Log("msg", "login failed", "err", err)
		return cli.Exit("", 3)
	}

	sel := jobs.NewSelect(c.String("mailbox"), true)
	sess.AddJob(sel)
	if err := sel.Await(wait); err != nil {
		level.Error(logger).Log("msg", "failed to open mailbox", "err", err)
		return cli.Exit("", 4)
	}

	fmt.Printf("mailbox %s: %d messages, %d recent, %d unseen, uidvalidity %d, flags %s\n",
		sess.SelectedMailbox(), sel.Exists, sel.Recent, sel.Unseen,
		sel.UIDValidity, strings.Join(sel.Flags, " "))

	logout := jobs.NewLogout()
	sess.AddJob(logout)
	if err := logout.Await(wait); err != nil {
		level.Warn(logger).Log("msg", "logout did not complete cleanly", "err", err)
	}

	return nil
}
