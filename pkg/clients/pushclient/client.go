package pushclient

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

// Client sends push notifications through the FCM v1 API.
type Client struct {
	service   *fcm.Service
	projectID string
}

// NewClient creates an FCM client authenticated with a service-account
// credentials file.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, fcm.FirebaseMessagingScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	service, err := fcm.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create FCM service: %w", err)
	}

	return &Client{service: service, projectID: projectID}, nil
}

// Send delivers one notification to one device token.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		},
	}

	_, err := c.service.Projects.Messages.Send("projects/"+c.projectID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}

	return nil
}
