/**
 * @description
 * Container is the typed registry of the service graph. It is built once by the
 * entrypoints and handed to the HTTP layer, the consumers and the CLI.
 *
 * @notes
 * - Nothing in this package keeps package level state. Tests build their own
 *   Container over in-memory stores.
 */

package app

import (
	"log/slog"
	"time"

	"github.com/transfa/fund-service/internal/config"
	"github.com/transfa/fund-service/internal/store"
	"github.com/transfa/fund-service/pkg/rabbitmq"
)

// Deps are the infrastructure adapters selected by the entrypoint.
type Deps struct {
	Repo      store.Repository
	Mirror    store.SessionMirror
	Publisher rabbitmq.Publisher
	Limiter   SubmitRateLimiter
	Logger    *slog.Logger
}

// Container holds the wired services.
type Container struct {
	Config       config.Config
	Repo         store.Repository
	Mirror       store.SessionMirror
	Publisher    rabbitmq.Publisher
	Funds        *FundService
	Wallet       *WalletService
	Users        *UserService
	Auth         *AuthService
	Orchestrator *Orchestrator
	NAVConsumer  *NAVUpdateConsumer
	Jobs         *Jobs
	Logger       *slog.Logger
}

// NewContainer wires the services over deps. Missing adapters fall back to
// their in-memory or no-op versions.
func NewContainer(cfg config.Config, deps Deps) *Container {
	if deps.Repo == nil {
		deps.Repo = store.NewMemoryRepository()
	}
	if deps.Mirror == nil {
		deps.Mirror = store.NewMemorySessionMirror()
	}
	if deps.Publisher == nil {
		deps.Publisher = &rabbitmq.DroppingPublisher{}
	}
	if deps.Limiter == nil {
		deps.Limiter = NewMemorySubmitRateLimiter()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	funds := NewFundService(deps.Repo, deps.Publisher)
	wallet := NewWalletService(deps.Repo, deps.Publisher)
	orchestrator := NewOrchestrator(funds, wallet, deps.Limiter, deps.Publisher, deps.Logger.With("component", "orchestrator"), OrchestratorConfig{
		SubmitLimit:  cfg.SubmitRateLimitPerMinute,
		SubmitWindow: time.Minute,
	})

	return &Container{
		Config:    cfg,
		Repo:      deps.Repo,
		Mirror:    deps.Mirror,
		Publisher: deps.Publisher,
		Funds:     funds,
		Wallet:    wallet,
		Users:     NewUserService(deps.Repo, deps.Mirror),
		Auth: NewAuthService(deps.Repo, deps.Mirror, AuthConfig{
			Secret:     cfg.JWTSecret,
			TTL:        cfg.JWTTTL(),
			Issuer:     cfg.JWTIssuer,
			BcryptCost: cfg.BcryptCost,
		}),
		Orchestrator: orchestrator,
		NAVConsumer:  NewNAVUpdateConsumer(funds),
		Jobs:         NewJobs(orchestrator, cfg.WizardIdleTTL(), deps.Logger.With("component", "jobs")),
		Logger:       deps.Logger,
	}
}
