// Command adminlogin is a terminal front-end for the platform's admin
// authentication flow. It signs in against PLATFORM_URL, resolves a second
// factor when one is demanded, and persists the session under DATA_FOLDER so
// a later run starts authenticated.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hauswerk/go-admin-auth/apiclient"
	"github.com/hauswerk/go-admin-auth/internal/config"
	"github.com/hauswerk/go-admin-auth/login"
	"github.com/hauswerk/go-admin-auth/session"
	"github.com/hauswerk/go-admin-auth/twofactor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	banner := figure.NewFigure(cfg.AppName, "cybermedium", true)
	banner.Print()
	fmt.Println()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !cfg.IsDev() {
		log = log.Level(zerolog.InfoLevel)
	}

	store, err := session.NewFileStore(cfg.DataFolder)
	if err != nil {
		return err
	}

	client, err := apiclient.New(cfg.PlatformURL, apiclient.WithLogger(log))
	if err != nil {
		return err
	}

	poller, err := twofactor.NewPoller(client,
		twofactor.WithInterval(cfg.PollInterval),
		twofactor.WithTimeout(cfg.PollTimeout),
		twofactor.WithPollerLogger(log),
	)
	if err != nil {
		return err
	}

	coord, err := login.NewCoordinator(client, store,
		login.WithLogger(log),
		login.WithPoller(poller),
		login.WithThrottle(twofactor.NewResendThrottle(twofactor.WithCooldown(cfg.ResendCooldown))),
	)
	if err != nil {
		return err
	}

	if s, err := coord.Restore(); err == nil {
		fmt.Printf("Already signed in as %s (%s). Sign out with `rm %s/session.json`.\n",
			s.User.Email, s.User.Role, cfg.DataFolder)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	s, err := signIn(ctx, coord, reader)
	if err != nil {
		return err
	}

	fmt.Printf("\nSigned in as %s %s <%s> (%s).\n", s.User.FirstName, s.User.LastName, s.User.Email, s.User.Role)
	return nil
}

func signIn(ctx context.Context, coord *login.Coordinator, reader *bufio.Reader) (*session.Session, error) {
	for {
		email := prompt(reader, "Email: ")
		password := prompt(reader, "Password: ")

		result, err := coord.SubmitCredentials(ctx, email, password)
		if err != nil {
			fmt.Printf("Sign-in failed: %s\n\n", err)
			continue
		}

		if result.Session != nil {
			return result.Session, nil
		}

		switch result.Challenge.Kind {
		case twofactor.KindPushApproval:
			s, err := awaitApproval(ctx, coord)
			if err != nil {
				fmt.Printf("%s\n\n", err)
				continue
			}
			return s, nil

		default:
			s, err := enterCode(ctx, coord, reader)
			if err != nil {
				fmt.Printf("%s\n\n", err)
				continue
			}
			return s, nil
		}
	}
}

func awaitApproval(ctx context.Context, coord *login.Coordinator) (*session.Session, error) {
	fmt.Println("Approve this sign-in on your registered device. Waiting...")

	s, err := coord.AwaitApproval(ctx)
	if err != nil {
		if errors.Is(err, login.ErrApprovalRejected) {
			coord.AcknowledgeRejectedNotice()
			return nil, errors.New("the sign-in was rejected on your device")
		}
		return nil, err
	}
	return s, nil
}

func enterCode(ctx context.Context, coord *login.Coordinator, reader *bufio.Reader) (*session.Session, error) {
	fmt.Println("A 6-digit code has been sent to your email.")

	for {
		code := prompt(reader, "Code (or 'resend', or 'back'): ")

		switch strings.ToLower(code) {
		case "back":
			coord.Cancel()
			return nil, errors.New("returned to sign-in")

		case "resend":
			msg, err := coord.ResendCode(ctx)
			if err != nil {
				if errors.Is(err, login.ErrResendThrottled) {
					fmt.Printf("Please wait %s before resending.\n", coord.ResendRemaining().Round(time.Second))
					continue
				}
				fmt.Printf("Resend failed: %s\n", err)
				continue
			}
			fmt.Println(msg)

		default:
			s, err := coord.SubmitCode(ctx, code)
			if err != nil {
				fmt.Printf("Verification failed: %s\n", err)
				continue
			}
			return s, nil
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
