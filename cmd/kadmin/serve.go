package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/backend"
	"github.com/relabs-tech/kadmin/core/backend/kss"
	"github.com/relabs-tech/kadmin/core/csql"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/notify"
	"github.com/relabs-tech/kadmin/core/password"
	"github.com/relabs-tech/kadmin/core/store"
	"github.com/relabs-tech/kadmin/core/store/memory"
	"github.com/relabs-tech/kadmin/core/store/mongo"
	"github.com/relabs-tech/kadmin/core/store/postgres"
	"github.com/relabs-tech/kadmin/services/admin"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadService()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, s)
		},
	}
}

func openStore(ctx context.Context, s *Service) (store.Store, error) {
	switch s.Store {
	case "memory":
		logger.Default().Warnln("using the memory store, entities are lost on exit")
		return memory.New(), nil
	case "postgres":
		if s.Postgres == "" {
			return nil, errors.New("POSTGRES is required for the postgres store")
		}
		db, err := csql.OpenWithSchema(s.Postgres, s.PostgresPassword, s.PostgresSchema)
		if err != nil {
			return nil, err
		}
		return postgres.New(db), nil
	case "mongo":
		if s.Mongo == "" {
			return nil, errors.New("MONGO is required for the mongo store")
		}
		st, err := mongo.Open(ctx, s.Mongo, s.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store %s", s.Store)
}

func kssConfiguration(s *Service) *kss.Configuration {
	if kss.DriverType(s.KSS) == kss.DriverTypeAWSS3 {
		return &kss.Configuration{
			DriverType: kss.DriverTypeAWSS3,
			S3Configuration: &kss.S3Configuration{
				AccessID:      s.AWSAccessID,
				AccessKey:     s.AWSAccessKey,
				AWSRegion:     s.AWSRegion,
				AWSBucketName: s.AWSBucketName,
				KeyPrefix:     s.S3KeyPrefix,
				Endpoint:      s.S3Endpoint,
				PublicURL:     s.S3PublicURL,
			},
		}
	}
	return &kss.Configuration{
		DriverType:         kss.DriverType(s.KSS),
		LocalConfiguration: &kss.LocalConfiguration{BasePath: s.UploadDir},
	}
}

// notifiers returns the configured event sinks and a function closing them
func notifiers(ctx context.Context, s *Service) (core.Notifier, func(), error) {
	var sinks notify.Multi
	closers := []func() error{}
	if brokers := splitList(s.KafkaBrokers); len(brokers) > 0 {
		k, err := notify.NewKafka(brokers, s.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
	}
	if s.SQSQueueURL != "" {
		q, err := notify.NewSQS(ctx, s.AWSRegion, s.SQSQueueURL)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, q)
	}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Default().WithError(err).Errorln("cannot close notifier")
			}
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	return sinks, closeAll, nil
}

func serve(ctx context.Context, s *Service) error {
	logger.InitLogger(logger.ParseLevel(s.LogLevel))
	rlog := logger.Default()

	passwords, err := password.New(s.Secret)
	if err != nil {
		return fmt.Errorf("SECRET: %w", err)
	}
	jwt, err := access.NewJWT(&access.JwtBuilder{Secret: s.Secret})
	if err != nil {
		return err
	}
	enforcer, err := access.NewEnforcer(admin.Policies...)
	if err != nil {
		return err
	}
	sch, err := admin.Schema()
	if err != nil {
		return err
	}
	entities, err := admin.Entities(passwords, enforcer)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, s)
	if err != nil {
		return err
	}
	notifier, closeNotifiers, err := notifiers(ctx, s)
	if err != nil {
		st.Close(ctx)
		return err
	}
	defer closeNotifiers()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := mux.NewRouter()
	backend.New(&backend.Builder{
		Schema:           sch,
		Entities:         entities,
		Store:            st,
		Router:           router,
		KSS:              kssConfiguration(s),
		Passwords:        passwords,
		JWT:              jwt,
		Notifier:         notifier,
		CORSOrigins:      splitList(s.CORSOrigins),
		CompressionLevel: s.CompressionLevel,
		MetricsRegistry:  registry,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rlog.Infoln("listen on port", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rlog.Infoln("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return st.Close(shutdownCtx)
	})
	return g.Wait()
}
