//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"transcribot/internal/app/quota"
	"transcribot/internal/config"
)

var storeSet = wire.NewSet(provideLogger, provideQuotaStore, provideLedger)

// InitializeApplication wires the HTTP service. The cleanup closes the quota
// store and flushes the logger.
func InitializeApplication(ctx context.Context, settings *config.Settings) (*Application, func(), error) {
	wire.Build(
		storeSet,
		provideRegistry,
		provideRecorder,
		provideOpenAIClient,
		provideTranscriber,
		provideMediaTools,
		provideArchiver,
		provideOrchestrator,
		provideHandlers,
		provideServer,
		NewApplication,
	)
	return nil, nil, nil
}

// InitializeLedger wires only the quota side, for commands that never transcribe.
func InitializeLedger(ctx context.Context, settings *config.Settings) (*quota.Ledger, func(), error) {
	wire.Build(storeSet)
	return nil, nil, nil
}
