// Command wsclient talks to a keynotes server: it fetches a token, uploads
// audio, follows job progress over the websocket and prints results.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/satriahrh/keynotes/domain"
)

// Global flags.
var (
	serverURL string
	accessKey string
	clientID  string
	token     string
	timeout   time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wsclient",
		Short: "Command-line client for the keynotes server",
		Long: `Command-line client for the keynotes server.

Examples:
  # Transcribe a recording and wait for the transcript
  wsclient upload meeting.wav --access-key secret --follow

  # Summarize instead of transcribing
  wsclient upload meeting.wav --task keynote --follow

  # Follow a job that is already running
  wsclient follow 0b6d5c3e-6f0e-4f57-9a43-3f1d1f6d2a10

  # Save a finished job as a spreadsheet
  wsclient print 0b6d5c3e-6f0e-4f57-9a43-3f1d1f6d2a10 --xlsx out.xlsx`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", envOr("KEYNOTES_SERVER", "http://localhost:8080"), "Server base URL")
	cmd.PersistentFlags().StringVar(&accessKey, "access-key", os.Getenv("ACCESS_KEY"), "Access key exchanged for a token")
	cmd.PersistentFlags().StringVar(&clientID, "client-id", "wsclient", "Client ID recorded in the token")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("KEYNOTES_TOKEN"), "Token to use instead of the access key")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "How long to wait for a job")

	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newUploadCommand())
	cmd.AddCommand(newFollowCommand())
	cmd.AddCommand(newPrintCommand())

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Exchange the access key for a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(serverURL)
			resp, err := c.Token(cmd.Context(), accessKey, clientID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", resp.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newUploadCommand() *cobra.Command {
	var (
		task           string
		language       string
		groupBySpeaker bool
		follow         bool
	)

	cmd := &cobra.Command{
		Use:   "upload <audio-file>",
		Short: "Upload an audio file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := authenticatedClient(cmd)
			if err != nil {
				return err
			}

			job, err := c.Upload(cmd.Context(), args[0], uploadOptions{
				Task:           task,
				Language:       language,
				GroupBySpeaker: groupBySpeaker,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Job %s queued\n", job.ID)

			if !follow {
				fmt.Fprintln(cmd.OutOrStdout(), job.ID)
				return nil
			}
			return followAndPrint(cmd, c, job.ID)
		},
	}

	cmd.Flags().StringVar(&task, "task", "transcribe", "transcribe or keynote")
	cmd.Flags().StringVar(&language, "language", "", "Recognition language, server default when empty")
	cmd.Flags().BoolVar(&groupBySpeaker, "group-by-speaker", true, "Merge consecutive chunks of the same speaker")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow progress and print the result")

	return cmd
}

func newFollowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <job-id>",
		Short: "Follow a job over the websocket and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := authenticatedClient(cmd)
			if err != nil {
				return err
			}
			return followAndPrint(cmd, c, args[0])
		},
	}
}

func newPrintCommand() *cobra.Command {
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "print <job-id>",
		Short: "Print the transcript or keynotes of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := authenticatedClient(cmd)
			if err != nil {
				return err
			}
			if xlsxPath != "" {
				return saveExport(cmd, c, args[0], xlsxPath)
			}
			text, err := c.Text(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the spreadsheet export to this path instead")

	return cmd
}

// authenticatedClient uses --token when set and exchanges the access key otherwise
func authenticatedClient(cmd *cobra.Command) (*client, error) {
	c := newClient(serverURL)
	if token != "" {
		c.token = token
		return c, nil
	}
	if accessKey == "" {
		return nil, fmt.Errorf("either --token or --access-key is required")
	}
	if _, err := c.Token(cmd.Context(), accessKey, clientID); err != nil {
		return nil, err
	}
	return c, nil
}

func followAndPrint(cmd *cobra.Command, c *client, jobID string) error {
	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	final, err := c.Follow(ctx, jobID, func(p *domain.JobProgressMessage) {
		line := p.Type
		if p.Step != "" {
			line += " " + p.Step
		}
		if p.Dropped > 0 {
			line += fmt.Sprintf(" (%d chunks dropped)", p.Dropped)
		}
		if p.Error != "" {
			line += ": " + p.Error
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "·", line)
	})
	if err != nil {
		return err
	}
	if final.Type != domain.ProgressJobCompleted {
		return fmt.Errorf("job %s failed: %s", jobID, final.Error)
	}

	text, err := c.Text(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func saveExport(cmd *cobra.Command, c *client, jobID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := c.Export(cmd.Context(), jobID, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s\n", path)
	return nil
}
