// Injectors for the graphs declared in wire.go, written in the shape wire
// generates and maintained by hand. Keep them in sync with wire.go, or run
// go generate to replace this file with wire's own output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"transcribot/internal/app/quota"
	"transcribot/internal/config"
)

// InitializeApplication wires the HTTP service. The cleanup closes the quota
// store and flushes the logger.
func InitializeApplication(ctx context.Context, settings *config.Settings) (*Application, func(), error) {
	logger, cleanup, err := provideLogger(settings)
	if err != nil {
		return nil, nil, err
	}
	quotaDAO, cleanup2, err := provideQuotaStore(ctx, settings, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	ledger := provideLedger(quotaDAO, settings, logger)
	ffmpeg := provideMediaTools(settings)
	client := provideOpenAIClient(settings)
	transcriber := provideTranscriber(client, settings)
	registry := provideRegistry()
	recorder := provideRecorder(registry)
	archiver, err := provideArchiver(ctx, settings)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	orchestratorOrchestrator := provideOrchestrator(ffmpeg, transcriber, ledger, logger, settings, recorder, archiver)
	handlerContainer := provideHandlers(orchestratorOrchestrator, ledger, settings, logger)
	serverServer := provideServer(settings, handlerContainer, registry, logger)
	application := NewApplication(settings, logger, ledger, orchestratorOrchestrator, serverServer)
	return application, func() {
		cleanup2()
		cleanup()
	}, nil
}

// InitializeLedger wires only the quota side, for commands that never transcribe.
func InitializeLedger(ctx context.Context, settings *config.Settings) (*quota.Ledger, func(), error) {
	logger, cleanup, err := provideLogger(settings)
	if err != nil {
		return nil, nil, err
	}
	quotaDAO, cleanup2, err := provideQuotaStore(ctx, settings, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	ledger := provideLedger(quotaDAO, settings, logger)
	return ledger, func() {
		cleanup2()
		cleanup()
	}, nil
}

// wire.go:

var storeSet = wire.NewSet(provideLogger, provideQuotaStore, provideLedger)
