// Package main provides the DisQueue operator CLI: submit, inspect, and
// cancel jobs directly against the broker, without going through the
// HTTP submission surface. Grounded on original_source/cli/cancel_job.py
// (a thin script importing the queue module directly) and enriched with
// cobra subcommands in the style of the retrieval pack's other CLI tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/pkg/client"
	"github.com/spf13/cobra"
)

var redisURL string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "disqueue",
		Short: "Operate on a DisQueue broker directly",
	}
	root.PersistentFlags().StringVar(&redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379"), "broker connection URL")

	root.AddCommand(cancelCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(queuesCmd())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() (*client.Client, error) {
	return client.NewClient(redisURL, queue.DefaultDescriptors()...)
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job before it dispatches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Cancel(context.Background(), args[0]); err != nil {
				return fmt.Errorf("cancelled: false: %w", err)
			}
			fmt.Printf("Cancelled: true (%s)\n", args[0])
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := c.Status(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		},
	}
}

func submitCmd() *cobra.Command {
	var queueName, priority, payloadJSON, jobID string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Enqueue a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload job.Payload
			if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
				return fmt.Errorf("invalid payload JSON: %w", err)
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := context.Background()
			if jobID == "" {
				id, err := c.SubmitAutoID(ctx, queueName, job.Priority(priority), payload)
				if err != nil {
					return err
				}
				jobID = id
			} else if err := c.Submit(ctx, queueName, job.Priority(priority), jobID, payload); err != nil {
				return err
			}
			fmt.Println(jobID)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "default", "queue name")
	cmd.Flags().StringVar(&priority, "priority", envOr("DISQUEUE_DEFAULT_PRIORITY", string(job.PriorityDefault)), "priority")
	cmd.Flags().StringVar(&payloadJSON, "payload", "{}", "job payload as JSON")
	cmd.Flags().StringVar(&jobID, "job-id", "", "caller-supplied job id (auto-generated if omitted)")
	return cmd
}

func queuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List registered queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITIES\tRETRY\tDLQ")
			for _, d := range c.ListQueues() {
				fmt.Fprintf(w, "%s\t%v\t%s(%d)\t%v\n", d.Name, d.Priorities, d.RetryStrategy, d.RetryLimit, d.EnableDLQ)
			}
			return w.Flush()
		},
	}
}
