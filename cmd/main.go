package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/assignment"
	"github.com/ukydev/fleet-assignments/internal/auth"
	"github.com/ukydev/fleet-assignments/internal/config"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/events"
	"github.com/ukydev/fleet-assignments/internal/handlers"
	"github.com/ukydev/fleet-assignments/internal/logging"
	"github.com/ukydev/fleet-assignments/internal/metrics"
	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stores groups the collections behind the API.
type stores struct {
	assignments db.AssignmentCollection
	drivers     db.DriverCollection
	vehicles    db.VehicleCollection
	users       db.UserCollection
	invitations db.InvitationCollection
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	publisher := openPublisher(cfg)
	defer publisher.Close()

	authService, err := auth.NewService()
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, st.users, authService, cfg); err != nil {
		return err
	}

	srv := newServer(cfg, st, authService, publisher)
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"backend": cfg.StoreBackend,
		}).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServer(cfg *config.Config, st *stores, authService *auth.Service, publisher events.Publisher) *http.Server {
	recorder := metrics.NewRecorder()
	engine := assignment.NewEngine(st.assignments,
		assignment.WithLocation(cfg.Location),
		assignment.WithObserver(recorder),
	)
	router := handlers.NewRouter(handlers.RouterConfig{
		Engine:          engine,
		Drivers:         st.drivers,
		Vehicles:        st.vehicles,
		Users:           st.users,
		Invitations:     st.invitations,
		AuthService:     authService,
		Publisher:       publisher,
		Metrics:         recorder,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		TrustedProxies:  cfg.TrustedProxies,
	})

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("Using in-memory store; data is lost on restart")
		fleet := db.NewMemoryFleetCollection()
		return &stores{
			assignments: db.NewMemoryAssignmentCollection(fleet),
			drivers:     fleet,
			vehicles:    fleet,
			users:       db.NewMemoryUserCollection(),
			invitations: db.NewMemoryInvitationCollection(),
			close:       func() {},
		}, nil
	}

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDB)
	fleet := db.NewMongoFleetCollection(database)
	assignments := db.NewMongoAssignmentCollection(database, fleet)
	users := db.NewMongoUserCollection(database)
	invitations := db.NewMongoInvitationCollection(database)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for name, ensure := range map[string]func(context.Context) error{
		"assignments": assignments.EnsureIndexes,
		"fleet":       fleet.EnsureIndexes,
		"users":       users.EnsureIndexes,
		"invitations": invitations.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}

	return &stores{
		assignments: assignments,
		drivers:     fleet,
		vehicles:    fleet,
		users:       users,
		invitations: invitations,
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("MongoDB disconnect failed")
			}
		},
	}, nil
}

// seedAdmin creates the configured admin account unless a user with that
// username already exists. Registration needs an invitation, so this account
// is how a fresh deployment gets its first administrator.
func seedAdmin(ctx context.Context, users db.UserCollection, authService *auth.Service, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set; no admin account seeded")
		return nil
	}
	if _, err := users.FindUserByUsername(ctx, cfg.AdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return fmt.Errorf("look up admin %s: %w", cfg.AdminUsername, err)
	}
	if err := authService.ValidatePassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}

	hash, err := authService.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	err = users.InsertUser(ctx, models.User{
		ID:           primitive.NewObjectID(),
		Username:     cfg.AdminUsername,
		Email:        strings.ToLower(cfg.AdminEmail),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FirstName:    "Root",
		LastName:     "Root",
		IsActive:     true,
	})
	// Another replica may have seeded it first.
	if errors.Is(err, db.ErrDuplicateUser) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin %s: %w", cfg.AdminUsername, err)
	}
	log.WithField("username", cfg.AdminUsername).Info("Seeded admin account")
	return nil
}

// openPublisher connects to every configured event transport. Events are
// optional, so a transport that cannot be reached is only skipped.
func openPublisher(cfg *config.Config) events.Publisher {
	var publishers []events.Publisher

	if cfg.MQTTBroker != "" {
		pub, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
		})
		if err != nil {
			log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT assignment events disabled")
		} else {
			log.WithField("broker", cfg.MQTTBroker).Info("Publishing assignment events over MQTT")
			publishers = append(publishers, pub)
		}
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.NATSURL,
			Name:          cfg.MQTTClientID,
			SubjectPrefix: cfg.NATSSubject,
		})
		if err != nil {
			log.WithError(err).WithField("url", cfg.NATSURL).Warn("NATS assignment events disabled")
		} else {
			log.WithField("url", cfg.NATSURL).Info("Publishing assignment events over NATS")
			publishers = append(publishers, pub)
		}
	}

	return events.Combine(publishers...)
}
