package push

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/school-notify-api/internal/domain"
	"google.golang.org/api/option"
)

// FCMOptions selects Firebase credentials. CredentialsFile wins; otherwise the
// service-account fields are used; with neither, application default
// credentials apply.
type FCMOptions struct {
	CredentialsFile string
	ProjectID       string
	ClientEmail     string
	PrivateKey      string
}

// FCM sends through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
}

func NewFCM(ctx context.Context, opts FCMOptions) (*FCM, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.ClientEmail != "" && opts.PrivateKey != "":
		// .env files carry the PEM with literal \n sequences.
		key := strings.ReplaceAll(opts.PrivateKey, `\n`, "\n")
		creds := fmt.Sprintf(`{"type":"service_account","project_id":%q,"private_key":%q,"client_email":%q,"token_uri":"https://oauth2.googleapis.com/token"}`,
			opts.ProjectID, key, opts.ClientEmail)
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
	}

	var appCfg *firebase.Config
	if opts.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: opts.ProjectID}
	}
	app, err := firebase.NewApp(ctx, appCfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	slog.Info("FCM provider ready", "project", opts.ProjectID)
	return &FCM{client: client}, nil
}

func (f *FCM) Name() string { return "fcm" }

func (f *FCM) Send(ctx context.Context, msg domain.PushMessage) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Token: msg.Address,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
	})
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) || messaging.IsSenderIDMismatch(err) {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return fmt.Errorf("fcm send: %w", err)
}
