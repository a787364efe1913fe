// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/config"
	"github.com/unclebandit/ngo-backoffice/internal/db"
	"github.com/unclebandit/ngo-backoffice/internal/lock"
	"github.com/unclebandit/ngo-backoffice/internal/mail"
	"github.com/unclebandit/ngo-backoffice/internal/queue"
	"github.com/unclebandit/ngo-backoffice/internal/repository"
	"github.com/unclebandit/ngo-backoffice/internal/service"
)

// App holds the wired dependencies shared by the server and the worker.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Queue  queue.Queue

	Newsletter     *service.NewsletterService
	Donations      *service.DonationService
	Collaborations *service.CollaborationService
	Dispatcher     *service.Dispatcher
	Jobs           *service.BroadcastJobs

	closers []func() error
}

// New connects to Postgres, the mail transport and, when configured, Redis
// and RabbitMQ. Without AMQP_URL broadcasts are queued in memory.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)

	transport, err := NewTransport(cfg.SMTP, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	q, err := a.newQueue()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Queue = q

	subscribers := &repository.SubscriberRepository{DB: conn}
	messages := &repository.MessageRepository{DB: conn}
	deliveries := &repository.DeliveryRepository{DB: conn}

	dispatch := service.DispatchConfigFrom(cfg.Newsletter)
	dispatch.IncludeErrorDetail = cfg.Newsletter.IncludeErrorDetail && !cfg.IsProduction()

	a.Dispatcher = service.NewDispatcher(subscribers, messages, deliveries, transport, dispatch, log.Named("dispatcher"))
	a.Dispatcher.Locker = locker

	a.Jobs = &service.BroadcastJobs{
		Queue:      q,
		Topic:      cfg.MQ.Queue,
		Dispatcher: a.Dispatcher,
		Logger:     log.Named("jobs"),
	}
	a.Newsletter = &service.NewsletterService{
		SubscriberRepo: subscribers,
		MessageRepo:    messages,
		DeliveryRepo:   deliveries,
		Logger:         log.Named("newsletter"),
	}
	a.Donations = &service.DonationService{
		DonationRepo: &repository.DonationRepository{DB: conn},
		Transport:    transport,
		Logger:       log.Named("donations"),
	}
	a.Collaborations = &service.CollaborationService{
		CollaborationRepo: &repository.CollaborationRepository{DB: conn},
		Logger:            log.Named("collaborations"),
	}
	return a, nil
}

// InProcessQueue reports whether broadcast jobs must be consumed by this process.
func (a *App) InProcessQueue() bool {
	_, ok := a.Queue.(*queue.InMemoryQueue)
	return ok
}

// NewTransport returns an SMTP transport, or a log transport when no host is set.
func NewTransport(cfg config.SMTPConfig, log *zap.Logger) (mail.Transport, error) {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return mail.NewLogTransport(log.Named("mail")), nil
	}

	domain := cfg.DKIM.Domain
	if domain == "" {
		if at := strings.LastIndex(cfg.From, "@"); at >= 0 {
			domain = cfg.From[at+1:]
		}
	}
	signer, err := mail.NewSigner(domain, cfg.DKIM.Selector, cfg.DKIM.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load dkim key: %w", err)
	}

	t, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Username:     cfg.Username,
		Password:     cfg.Password,
		From:         cfg.From,
		FromName:     cfg.FromName,
		ImplicitTLS:  cfg.ImplicitTLS,
		Timeout:      cfg.Timeout,
		MaxPerSecond: cfg.MaxPerSecond,
	}, signer)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	rc := a.Config.Redis
	if rc.Addr == "" {
		return lock.Noop{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	a.Logger.Info("broadcast lock backed by redis", zap.String("addr", rc.Addr))
	return lock.NewRedisLocker(rdb, rc.LockTTL), nil
}

func (a *App) newQueue() (queue.Queue, error) {
	if a.Config.MQ.URL == "" {
		q := queue.NewInMemoryQueue(a.Logger.Named("queue"))
		a.closers = append(a.closers, q.Close)
		return q, nil
	}
	q, err := queue.DialAMQP(a.Config.MQ.URL, a.Logger.Named("queue"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	return q, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
