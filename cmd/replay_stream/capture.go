package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ai-sqlnotebook-be/pkg/querystream"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	captureURL       string
	captureProject   string
	captureNotebook  string
	captureOut       string
	captureTimeoutSc int
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVar(&captureURL, "url", "http://localhost:8000", "query backend base URL")
	captureCmd.Flags().StringVar(&captureProject, "project", "", "project id (required)")
	captureCmd.Flags().StringVar(&captureNotebook, "notebook", "", "notebook id (random when empty)")
	captureCmd.Flags().StringVar(&captureOut, "out", "capture.txt", "file to write the raw response to")
	captureCmd.Flags().IntVar(&captureTimeoutSc, "timeout", 120, "overall timeout in seconds")
	_ = captureCmd.MarkFlagRequired("project")
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record a raw response from the query backend for later replay",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectId, err := uuid.Parse(captureProject)
		if err != nil {
			return fmt.Errorf("invalid --project: %w", err)
		}
		notebookId := uuid.New()
		if captureNotebook != "" {
			if notebookId, err = uuid.Parse(captureNotebook); err != nil {
				return fmt.Errorf("invalid --notebook: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(captureTimeoutSc)*time.Second)
		defer cancel()

		client := querystream.NewClient(captureURL, 30*time.Second)
		body, err := client.Open(ctx, querystream.Request{
			ProjectId:       projectId,
			NotebookId:      notebookId,
			NotebookEntryId: uuid.New(),
			Version:         1,
		})
		if err != nil {
			return err
		}
		defer body.Close()

		out, err := os.Create(captureOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer out.Close()

		n, err := io.Copy(out, body)
		if err != nil {
			return fmt.Errorf("copy response: %w", err)
		}

		color.Green("Captured %d bytes to %s", n, captureOut)
		return nil
	},
}
