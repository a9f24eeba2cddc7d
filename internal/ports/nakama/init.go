package nakama

import (
	"context"
	"database/sql"

	"bluffroyal/internal/app"
	"bluffroyal/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
)

// InitModule wires RPCs, hooks and the match handler for the Nakama runtime.
// One engine instance serves every match in the node; each match owns one
// engine room keyed by its match id.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("InitModule: Could not load game config: %v", err)
	}
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if err := config.ApplyEnvOverrides(env); err != nil {
			logger.Warn("InitModule: Could not apply env overrides: %v", err)
		}
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return err
	}

	// The registry exists before the engine because the engine takes its
	// broadcaster at construction; Bind closes the cycle.
	registry := NewDispatcherRegistry(logger)
	svc := app.NewService(app.Config{
		ReactionWindow: config.ReactionWindow(),
		Broadcaster:    registry,
		Logger:         zapLogger,
	})
	registry.Bind(svc)

	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcInviteToken, RpcGetInviteToken); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameBluffRoyal, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(svc, registry), nil
	}); err != nil {
		return err
	}

	logger.Info("Bluff Royal Go module loaded.")
	return nil
}
