// README: FCM-backed dispatcher; resolves worker ids to device tokens and sends per token.
package notify

import (
	"context"

	"firebase.google.com/go/v4/messaging"

	"fieldops/internal/types"
)

// TokenSource resolves a recipient to their registered device tokens,
// most recently used first. An empty slice is a valid answer (recipient
// never registered a device).
type TokenSource interface {
	TokensFor(ctx context.Context, recipientID types.ID) ([]string, error)
}

type FCMDispatcher struct {
	client *messaging.Client
	tokens TokenSource
}

func NewFCMDispatcher(client *messaging.Client, tokens TokenSource) *FCMDispatcher {
	return &FCMDispatcher{client: client, tokens: tokens}
}

// Notify sends to every device of every recipient. A recipient counts as
// reached when at least one of their devices accepts the message.
func (d *FCMDispatcher) Notify(ctx context.Context, recipients []types.ID, title, body string, data map[string]string) ([]Result, error) {
	results := make([]Result, 0, len(recipients))
	for _, id := range recipients {
		results = append(results, d.notifyOne(ctx, id, title, body, data))
	}
	return results, nil
}

func (d *FCMDispatcher) notifyOne(ctx context.Context, id types.ID, title, body string, data map[string]string) Result {
	tokens, err := d.tokens.TokensFor(ctx, id)
	if err != nil {
		return Result{RecipientID: id, Error: err.Error()}
	}
	if len(tokens) == 0 {
		return Result{RecipientID: id, Error: "no registered device"}
	}

	var lastErr error
	for _, token := range tokens {
		_, err := d.client.Send(ctx, &messaging.Message{
			Token:        token,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		})
		if err == nil {
			return Result{RecipientID: id, Success: true}
		}
		lastErr = err
	}
	return Result{RecipientID: id, Error: lastErr.Error()}
}
