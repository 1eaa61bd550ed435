package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tollgate/internal/config"
	"tollgate/internal/domain"
	"tollgate/internal/infra/content"
	"tollgate/internal/infra/crypto"
	"tollgate/internal/infra/db"
	"tollgate/internal/infra/govmem"
	"tollgate/internal/infra/ledger"
	"tollgate/internal/infra/policy"
	"tollgate/internal/infra/pricing"
	"tollgate/internal/infra/ratelimit"
	"tollgate/internal/infra/treasury"
	"tollgate/internal/infra/usedpayments"
	"tollgate/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.Config
	store  *db.Store
	r      *gin.Engine
	logger *zap.SugaredLogger

	gate       *usecase.AccessGate
	registry   *usecase.ApprovalRegistry
	signatures *crypto.Service

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	rateLimitClosed   bool

	adminAPIKey string
	initErr     error
}

func NewServer(cfg config.Config, store *db.Store, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, logger: logger}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Gate        *usecase.AccessGate
	Registry    *usecase.ApprovalRegistry
	Signatures  *crypto.Service
	RateLimiter domain.RateLimiter
	AdminAPIKey string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		logger:      logger,
		gate:        deps.Gate,
		registry:    deps.Registry,
		signatures:  deps.Signatures,
		rateLimiter: deps.RateLimiter,
		adminAPIKey: deps.AdminAPIKey,
	}
	if s.signatures == nil {
		s.signatures = crypto.NewService()
	}
	s.rateLimitRequests = cfg.RateLimitRequests
	s.rateLimitWindow = cfg.RateLimitWindow()
	s.rateLimitClosed = cfg.RateLimitFailClosed
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey
	s.signatures = crypto.NewService()

	var proposals usecase.ProposalRepository
	var configs usecase.GovernanceConfigRepository
	if s.store != nil && s.store.DB != nil {
		proposals = db.NewProposalRepository(s.store.DB)
		configs = db.NewGovernanceRepository(s.store.DB)
	} else {
		proposals = govmem.NewProposalStore()
		configs = govmem.NewConfigStore()
	}

	var disp usecase.Treasury
	if s.cfg.TreasuryURL != "" {
		client, err := treasury.NewClient(s.cfg.TreasuryURL, nil)
		if err != nil {
			s.initErr = err
			return
		}
		disp = client
	}
	executor := usecase.NewProposalExecutor(disp, s.logger)

	bootstrap := domain.GovernanceConfig{
		Threshold: uint(s.cfg.GovThreshold),
		Approvers: make(map[domain.Identity]domain.Approver, len(s.cfg.GovApprovers)),
	}
	now := time.Now().UTC()
	for _, id := range s.cfg.GovApprovers {
		identity := domain.Identity(id)
		bootstrap.Approvers[identity] = domain.Approver{Identity: identity, Active: true, AddedAt: now}
	}
	registry, err := usecase.NewApprovalRegistry(context.Background(), proposals, configs, executor, bootstrap, s.logger)
	if err != nil {
		s.initErr = err
		return
	}
	s.registry = registry

	var used usecase.UsedPaymentIndex
	if s.cfg.RedisAddr != "" {
		if index, err := usedpayments.NewRedisIndex(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
			used = index
		}
	}
	if used == nil && s.store != nil && s.store.DB != nil {
		used = db.NewUsedPaymentRepository(s.store.DB)
	}
	if used == nil {
		s.logger.Warnw("no durable used-payment backend configured; falling back to in-memory index")
		used = usedpayments.NewMemoryIndex(nil)
	}

	var led usecase.Ledger
	if s.cfg.LedgerURL != "" {
		client, err := ledger.NewClient(s.cfg.LedgerURL, s.cfg.LedgerTimeout(), nil)
		if err != nil {
			s.initErr = err
			return
		}
		led = client
	} else {
		led = unavailableLedger{}
	}
	verifier := usecase.NewPaymentVerifier(led, used, s.logger)

	var classifier domain.RequesterClassifier
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath)
		if err != nil {
			s.initErr = err
			return
		}
		classifier = engine
	} else {
		classifier = policy.NewHeuristic()
	}

	var pricer usecase.Pricer
	if s.cfg.PricingPath != "" {
		table, err := pricing.LoadTable(s.cfg.PricingPath)
		if err != nil {
			s.initErr = err
			return
		}
		pricer = table
	} else {
		table, _ := pricing.NewTable(nil)
		pricer = table
	}

	var fetcher usecase.ContentFetcher
	if s.cfg.OriginURL != "" {
		client, err := content.NewClient(s.cfg.OriginURL, nil)
		if err != nil {
			s.initErr = err
			return
		}
		fetcher = client
	} else {
		fetcher = missingOrigin{}
	}

	s.gate = usecase.NewAccessGate(classifier, pricer, verifier, fetcher, s.logger)
	s.initRateLimit()
}

func (s *Server) initRateLimit() {
	if s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	s.r.GET("/content/*resource", s.rateLimitMiddleware(), s.handleContent)

	v1 := s.r.Group("/v1")
	{
		v1.POST("/governance/proposals", s.handleSubmitProposal)
		v1.POST("/governance/proposals/:id/confirm", s.handleConfirmProposal)
		v1.POST("/governance/proposals/:id/revoke", s.handleRevokeProposal)

		v1.GET("/governance/proposals", s.handleListPending)
		v1.GET("/governance/proposals/:id", s.handleGetProposal)
		v1.GET("/governance/config", s.handleGetConfig)
	}

	s.r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Code: "not_found", Message: "route not found"})
	})
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

type unavailableLedger struct{}

func (unavailableLedger) Lookup(context.Context, domain.PaymentReference) (domain.LedgerEntry, error) {
	return domain.LedgerEntry{}, domain.ErrLedgerUnavailable
}

type missingOrigin struct{}

func (missingOrigin) Fetch(context.Context, string) ([]byte, string, error) {
	return nil, "", errors.New("no origin configured")
}
