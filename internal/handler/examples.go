package handler

import (
	"context"
	"fmt"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
)

// Example handlers wired into cmd/worker by default. Real deployments
// replace these with their own handlers registered against the same
// queue names declared in the queue registry.

// HandleDefault logs the payload it receives and succeeds unconditionally.
func HandleDefault(ctx context.Context, payload job.Payload) error {
	logger.Info("processed default job", "payload_keys", len(payload))
	return nil
}

// HandleImageProcessing expects a "url" field identifying the image to
// resize.
func HandleImageProcessing(ctx context.Context, payload job.Payload) error {
	url, ok := payload["url"].(string)
	if !ok || url == "" {
		return fmt.Errorf("image_processing job missing url field")
	}
	logger.Info("resized image", "url", url)
	return nil
}

// HandleEmail expects "to" and "subject" fields.
func HandleEmail(ctx context.Context, payload job.Payload) error {
	to, ok := payload["to"].(string)
	if !ok || to == "" {
		return fmt.Errorf("email job missing to field")
	}
	logger.Info("sent email", "to", to, "subject", payload["subject"])
	return nil
}

// HandleBilling expects an "invoice_id" field.
func HandleBilling(ctx context.Context, payload job.Payload) error {
	invoiceID, ok := payload["invoice_id"].(string)
	if !ok || invoiceID == "" {
		return fmt.Errorf("billing job missing invoice_id field")
	}
	logger.Info("charged invoice", "invoice_id", invoiceID)
	return nil
}
