package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"refunds-backend/internal/config"
	"refunds-backend/internal/gateway"
	"refunds-backend/internal/gateway/ach"
	"refunds-backend/internal/gateway/adyen"
	"refunds-backend/internal/gateway/balance"
	"refunds-backend/internal/gateway/braintree"
	"refunds-backend/internal/gateway/stripe"
	infraCache "refunds-backend/internal/infrastructure/cache"
	"refunds-backend/internal/infrastructure/database"
	"refunds-backend/internal/infrastructure/email"
	"refunds-backend/internal/infrastructure/lock"
	"refunds-backend/internal/infrastructure/queue"
	"refunds-backend/internal/infrastructure/secrets"
	"refunds-backend/internal/infrastructure/storage"
	"refunds-backend/pkg/cache"
	"refunds-backend/pkg/jwt"
	"refunds-backend/pkg/logger"

	approvalHandler "refunds-backend/internal/domains/approval/handler"
	approvalRepo "refunds-backend/internal/domains/approval/repository"
	approvalService "refunds-backend/internal/domains/approval/service"
	bankHandler "refunds-backend/internal/domains/bankaccount/handler"
	bankRepo "refunds-backend/internal/domains/bankaccount/repository"
	bankService "refunds-backend/internal/domains/bankaccount/service"
	merchantHandler "refunds-backend/internal/domains/merchant/handler"
	merchantRepo "refunds-backend/internal/domains/merchant/repository"
	notificationRepo "refunds-backend/internal/domains/notification/repository"
	notificationService "refunds-backend/internal/domains/notification/service"
	parameterHandler "refunds-backend/internal/domains/parameter/handler"
	parameterRepo "refunds-backend/internal/domains/parameter/repository"
	parameterService "refunds-backend/internal/domains/parameter/service"
	refundHandler "refunds-backend/internal/domains/refund/handler"
	refundRepo "refunds-backend/internal/domains/refund/repository"
	refundService "refunds-backend/internal/domains/refund/service"
	reportHandler "refunds-backend/internal/domains/report/handler"
	reportService "refunds-backend/internal/domains/report/service"
	transactionRepo "refunds-backend/internal/domains/transaction/repository"
)

// =====================================================
// CONTAINER
// =====================================================

// Container is the root of the dependency graph. Everything in it is a
// singleton built once at startup, in dependency order: config, then
// infrastructure, then repositories, services, and handlers.
type Container struct {
	// Infrastructure
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *redis.Client
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	Locker      lock.Locker
	Idempotency lock.IdempotencyStore
	Queue       *queue.Client
	Secrets     *secrets.EncryptedStore
	Encryptor   *secrets.EnvelopeEncryptor
	Credentials *gateway.CredentialManager
	Registry    *gateway.Registry
	Storage     *storage.MinIOStorage
	Email       email.Service

	// Repositories
	MerchantRepo     merchantRepo.MerchantRepository
	TransactionRepo  transactionRepo.TransactionRepository
	BankAccountRepo  bankRepo.BankAccountRepository
	ACHOriginator    ach.Originator
	ParameterRepo    parameterRepo.ParameterRepository
	RefundRepo       refundRepo.RefundRepository
	ApprovalRepo     approvalRepo.ApprovalRepository
	NotificationRepo notificationRepo.NotificationRepository

	// Services
	ParameterService    parameterService.ParameterService
	BankAccountService  bankService.BankAccountService
	Compliance          *refundService.ComplianceChecker
	ApprovalService     approvalService.ApprovalService
	RefundService       refundService.RefundService
	NotificationService notificationService.NotificationService
	ReportService       reportService.ReportService

	// Handlers
	RefundHandler      *refundHandler.RefundHandler
	WebhookHandler     *refundHandler.WebhookHandler
	ParameterHandler   *parameterHandler.ParameterHandler
	BankAccountHandler *bankHandler.BankAccountHandler
	ApprovalHandler    *approvalHandler.ApprovalHandler
	ReportHandler      *reportHandler.ReportHandler
	CredentialHandler  *merchantHandler.CredentialHandler
}

// NewContainer builds the full dependency graph.
func NewContainer() (*Container, error) {
	c := &Container{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initRepositories()
	if err := c.initServices(); err != nil {
		return nil, err
	}
	c.initHandlers()

	logger.Info("container initialized", map[string]interface{}{
		"environment": cfg.App.Environment,
		"gateways":    c.Registry.Types(),
	})
	return c, nil
}

// =====================================================
// INFRASTRUCTURE
// =====================================================

func (c *Container) initInfrastructure() error {
	cfg := c.Config

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	// One Redis client shared by the cache, the lock, and the
	// idempotency store; asynq maintains its own connections.
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Cache = infraCache.NewRedisCacheFromClient(c.Redis)
	c.Locker = lock.NewRedisLocker(c.Redis)
	c.Idempotency = lock.NewRedisIdempotencyStore(c.Redis)

	c.Queue = queue.NewClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB, cfg.Worker.MaxAttempts)

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	masterKey := cfg.Secrets.MasterKey
	if masterKey == "" {
		// Development fallback; production refuses to start without a key.
		masterKey = "0000000000000000000000000000000000000000000000000000000000000000"
	}
	encryptor, err := secrets.NewEnvelopeEncryptor(masterKey, cfg.Secrets.MasterKeyID)
	if err != nil {
		return fmt.Errorf("failed to build envelope encryptor: %w", err)
	}
	c.Encryptor = encryptor
	// Envelopes live in postgres so every node sees the same credential
	// versions after a rotation.
	c.Secrets = secrets.NewEncryptedStore(encryptor, secrets.NewPostgresBackend(c.DB.Pool))
	c.Credentials = gateway.NewCredentialManager(c.Secrets,
		time.Duration(cfg.Secrets.CredentialTTLSeconds)*time.Second)

	minioStorage, err := storage.NewMinIOStorage(
		cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
	if err != nil {
		return fmt.Errorf("failed to build object storage: %w", err)
	}
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		logger.Warn("object storage bucket check failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.Storage = minioStorage

	c.Email = email.NewSMTPService(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.From)

	return nil
}

// =====================================================
// REPOSITORIES
// =====================================================

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.MerchantRepo = merchantRepo.NewPostgresMerchantRepository(pool)
	c.TransactionRepo = transactionRepo.NewPostgresTransactionRepository(pool)
	c.BankAccountRepo = bankRepo.NewPostgresBankAccountRepository(pool)
	c.ACHOriginator = bankRepo.NewPostgresACHOriginator(pool)
	c.ParameterRepo = parameterRepo.NewPostgresParameterRepository(pool)
	c.RefundRepo = refundRepo.NewPostgresRefundRepository(pool)
	c.ApprovalRepo = approvalRepo.NewPostgresApprovalRepository(pool)
	c.NotificationRepo = notificationRepo.NewPostgresNotificationRepository(pool)
}

// =====================================================
// SERVICES
// =====================================================

func (c *Container) initServices() error {
	cfg := c.Config

	// Gateway adapters register once; the dispatcher routes by type.
	c.Registry = gateway.NewRegistry()
	adapters := []gateway.Adapter{
		stripe.NewClient(&stripe.Config{
			APIURL:        cfg.Stripe.APIURL,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}),
		adyen.NewClient(&adyen.Config{
			APIURL:  cfg.Adyen.APIURL,
			HMACKey: cfg.Adyen.HMACKey,
		}),
		braintree.NewClient(&braintree.Config{
			APIURL:        cfg.Braintree.APIURL,
			WebhookSecret: cfg.Braintree.WebhookSecret,
		}),
		balance.NewAdapter(c.MerchantRepo),
		ach.NewAdapter(c.ACHOriginator),
	}
	for _, adapter := range adapters {
		if err := c.Registry.Register(adapter); err != nil {
			return fmt.Errorf("failed to register gateway adapter: %w", err)
		}
	}

	c.ParameterService = parameterService.NewParameterService(
		c.ParameterRepo,
		c.MerchantRepo,
		c.Cache,
		time.Duration(cfg.Resolution.CacheTTLSeconds)*time.Second,
	)

	c.BankAccountService = bankService.NewBankAccountService(c.BankAccountRepo, c.Encryptor)

	c.Compliance = refundService.NewComplianceChecker(
		c.ParameterService,
		c.TransactionRepo,
		c.MerchantRepo,
		c.BankAccountRepo,
		c.Registry,
	)

	c.ApprovalService = approvalService.NewApprovalService(
		c.ApprovalRepo,
		c.ParameterService,
		c.Queue,
	)

	c.RefundService = refundService.NewRefundService(
		c.RefundRepo,
		c.Compliance,
		c.ApprovalService,
		c.Queue,
		c.Locker,
		c.Idempotency,
		c.Registry,
		c.Credentials,
		refundService.Options{
			LockLease:    time.Duration(cfg.Worker.LockLeaseMs) * time.Millisecond,
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryInitial: time.Duration(cfg.Worker.RetryInitialMs) * time.Millisecond,
			RetryFactor:  cfg.Worker.RetryFactor,
		},
	)

	// The approval side reports decisions back into the refund lifecycle.
	c.ApprovalService.SetRecorder(c.RefundService)

	c.NotificationService = notificationService.NewNotificationService(
		c.NotificationRepo,
		c.MerchantRepo,
		c.Email,
	)

	c.ReportService = reportService.NewReportService(c.RefundRepo, c.Storage)

	return nil
}

// =====================================================
// HANDLERS
// =====================================================

func (c *Container) initHandlers() {
	cfg := c.Config

	c.RefundHandler = refundHandler.NewRefundHandler(c.RefundService)
	c.WebhookHandler = refundHandler.NewWebhookHandler(c.Registry, c.RefundService, map[string]string{
		gateway.TypeStripe:    cfg.Stripe.WebhookSecret,
		gateway.TypeAdyen:     cfg.Adyen.HMACKey,
		gateway.TypeBraintree: cfg.Braintree.WebhookSecret,
	})
	c.ParameterHandler = parameterHandler.NewParameterHandler(c.ParameterService)
	c.BankAccountHandler = bankHandler.NewBankAccountHandler(c.BankAccountService)
	c.ApprovalHandler = approvalHandler.NewApprovalHandler(c.ApprovalService)
	c.ReportHandler = reportHandler.NewReportHandler(c.ReportService)
	c.CredentialHandler = merchantHandler.NewCredentialHandler(c.Credentials, c.Registry)
}

// Cleanup releases held connections during graceful shutdown.
func (c *Container) Cleanup() {
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			logger.Error("failed to close queue client", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("failed to close redis client", err)
		}
	}
	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
	}
	logger.Info("container cleanup completed", nil)
}
