package serve

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"transcribot/cmd/transcribot/cmd/settings"
	"transcribot/internal/app"
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

- POST /api/v1/transcriptions uploads and transcribes a media file
- GET /api/v1/quota/:user_id reports remaining transcription time
- POST /api/v1/quota/:user_id/credits adds purchased time (admin token)
- GET /health and GET /metrics for operations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(true)
		if err != nil {
			return err
		}

		application, cleanup, err := app.InitializeApplication(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer cleanup()

		application.Logger.Info("transcribot starting",
			zap.String("quota_store", s.Quota.Store),
			zap.String("language", s.Transcription.Language),
			zap.Duration("chunk_timeout", s.ChunkTimeout()),
			zap.Bool("archive", s.ArchiveEnabled()))
		return application.Serve(cmd.Context())
	},
}
