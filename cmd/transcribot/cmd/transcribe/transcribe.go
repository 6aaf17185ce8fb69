package transcribe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"transcribot/cmd/transcribot/cmd/settings"
	"transcribot/internal/app"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/message"
	"transcribot/internal/app/model"
	"transcribot/internal/app/orchestrator"
)

var (
	userID       string
	filePath     string
	mediaFormat  string
	showProgress bool
	pageLimit    int
)

func init() {
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "User whose quota is charged")
	Cmd.Flags().StringVarP(&filePath, "file", "f", "", "Media file to transcribe (m4a, mp3, mp4, wav)")
	Cmd.Flags().StringVar(&mediaFormat, "format", "", "Media format; detected from the file extension when empty")
	Cmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "Show a per-chunk progress bar even when not on a terminal")
	Cmd.Flags().IntVar(&pageLimit, "page-limit", message.DefaultPageLimit, "Maximum characters per printed message")

	Cmd.MarkFlagRequired("user")
	Cmd.MarkFlagRequired("file")
}

// Cmd represents the transcribe command
var Cmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe one local media file for a user",
	Long: `Transcribe one local media file for a user

- Reserves the file's duration from the user's quota
- Transcribes at most what the quota covers, in chunks of up to 10 minutes
- Prints the reply as it would be delivered, split into messages`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := mediaFormat
		if format == "" {
			detected, err := message.FormatFor("", filePath)
			if err != nil {
				return err
			}
			format = detected
		}
		if _, err := os.Stat(filePath); err != nil {
			return fmt.Errorf("media file: %w", err)
		}

		s, err := settings.Load(true)
		if err != nil {
			return err
		}
		application, cleanup, err := app.InitializeApplication(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer cleanup()

		progress := orchestrator.NewProgressManager(orchestrator.ProgressConfig{
			Enabled: orchestrator.ShouldShowProgress(showProgress),
		})
		orch := application.Orchestrator.With(orchestrator.WithObserver(progress.Observer(filepath.Base(filePath))))

		outcome, err := orch.Transcribe(cmd.Context(), model.TranscriptionJob{
			SourceFilePath: filePath,
			MediaFormat:    format,
			UserID:         userID,
		})
		progress.Finish(err == nil)
		if drainErr := application.Drain(cmd.Context()); drainErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", drainErr)
		}
		if err != nil {
			if required, ok := apperrors.RequiredSecondsOf(err); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), message.PaymentPromotion(&required, s.HTTP.PaymentPageURL))
			}
			return err
		}

		printPages(cmd.OutOrStdout(), message.Paginate(message.Compose(outcome), pageLimit))
		fmt.Fprintf(cmd.ErrOrStderr(), "Remaining transcription time: %s\n", message.RemainingTimeText(outcome.RemainingSeconds))
		return nil
	},
}

func printPages(w io.Writer, pages []string) {
	for i, page := range pages {
		if len(pages) > 1 {
			fmt.Fprintf(w, "--- message %d/%d ---\n", i+1, len(pages))
		}
		fmt.Fprintln(w, page)
	}
}
