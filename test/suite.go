// Package test contains integration tests against real infrastructure started
// with testcontainers.
package test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/backend"
	"github.com/relabs-tech/kadmin/core/backend/kss"
	"github.com/relabs-tech/kadmin/core/client"
	"github.com/relabs-tech/kadmin/core/csql"
	"github.com/relabs-tech/kadmin/core/notify"
	"github.com/relabs-tech/kadmin/core/password"
	"github.com/relabs-tech/kadmin/core/store/postgres"
	"github.com/relabs-tech/kadmin/services/admin"
)

const eventTopic = "kadmin_events"

// IntegrationTestSuite runs the admin service on Postgres with Kafka events
type IntegrationTestSuite struct {
	suite.Suite
	*backend.Backend
	srv    *httptest.Server
	client client.Client

	dbConn            *csql.DB
	store             *postgres.Store
	notifier          *notify.Kafka
	network           testcontainers.Network
	kafkaContainer    testcontainers.Container
	zookeeper         testcontainers.Container
	postgresContainer testcontainers.Container
	kafkaAddr         string
}

func (s *IntegrationTestSuite) createTopic(topic string, numPartitions int) error {
	conn, err := kafka.Dial("tcp", s.kafkaAddr)
	if err != nil {
		return fmt.Errorf("kafka connection is not established: %w", err)
	}
	defer conn.Close()
	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

// SetupSuite starts Postgres and Kafka and serves the admin service over HTTP
func (s *IntegrationTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("integration tests need docker")
	}
	ctx := context.Background()

	networkName := "test-kadmin-network_" + fmt.Sprintf("%d", time.Now().Unix())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name:           networkName,
			CheckDuplicate: true,
		},
	})
	s.Require().NoError(err)
	s.network = network

	postgresUser := "testuser"
	postgresPassword := "testpass"
	postgresDB := "testdb"
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPassword,
				"POSTGRES_DB":       postgresDB,
			},
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"postgres"}},
			WaitingFor:     wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.postgresContainer = pgC

	pgHost, err := pgC.Host(ctx)
	s.Require().NoError(err)
	pgPort, err := pgC.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	zooC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "confluentinc/cp-zookeeper:7.5.0",
			ExposedPorts: []string{"2181/tcp"},
			Env: map[string]string{
				"ZOOKEEPER_CLIENT_PORT": "2181",
				"ZOOKEEPER_TICK_TIME":   "2000",
			},
			WaitingFor:     wait.ForListeningPort("2181/tcp"),
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"zookeeper"}},
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.zookeeper = zooC

	kafkaC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "confluentinc/cp-kafka:7.5.0",
			ExposedPorts: []string{"9092:9092/tcp"},
			Env: map[string]string{
				"KAFKA_BROKER_ID":                        "1",
				"KAFKA_ZOOKEEPER_CONNECT":                "zookeeper:2181",
				"KAFKA_LISTENERS":                        "PLAINTEXT://0.0.0.0:9092,EXTERNAL://0.0.0.0:9093",
				"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://localhost:9092,EXTERNAL://kafka:9093",
				"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":   "PLAINTEXT:PLAINTEXT,EXTERNAL:PLAINTEXT",
				"KAFKA_INTER_BROKER_LISTENER_NAME":       "EXTERNAL",
				"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": "1",
			},
			WaitingFor:     wait.ForLog("started (kafka.server.KafkaServer)"),
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"kafka"}},
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.kafkaContainer = kafkaC

	kafkaHost, err := kafkaC.Host(ctx)
	s.Require().NoError(err)
	kafkaPort, err := kafkaC.MappedPort(ctx, "9092")
	s.Require().NoError(err)
	s.kafkaAddr = fmt.Sprintf("%s:%s", kafkaHost, kafkaPort.Port())
	s.Require().NoError(s.createTopic(eventTopic, 1))

	s.dbConn, err = csql.OpenWithSchema(fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		pgHost, pgPort.Port(), postgresUser, postgresDB), postgresPassword, "kadmin")
	s.Require().NoError(err)
	s.store = postgres.New(s.dbConn)

	s.notifier, err = notify.NewKafka([]string{s.kafkaAddr}, eventTopic)
	s.Require().NoError(err)

	passwords, err := password.New("integration secret")
	s.Require().NoError(err)
	jwt, err := access.NewJWT(&access.JwtBuilder{Secret: "integration secret"})
	s.Require().NoError(err)
	enforcer, err := access.NewEnforcer(admin.Policies...)
	s.Require().NoError(err)
	sch, err := admin.Schema()
	s.Require().NoError(err)
	entities, err := admin.Entities(passwords, enforcer)
	s.Require().NoError(err)

	router := mux.NewRouter()
	s.Backend = backend.New(&backend.Builder{
		Schema:   sch,
		Entities: entities,
		Store:    s.store,
		Router:   router,
		KSS: &kss.Configuration{
			DriverType:         kss.DriverTypeLocal,
			LocalConfiguration: &kss.LocalConfiguration{BasePath: s.T().TempDir()},
		},
		Passwords: passwords,
		JWT:       jwt,
		Notifier:  s.notifier,
	})

	s.srv = httptest.NewServer(router)
	s.client = client.NewWithURL(s.srv.URL)
}

// TearDownSuite stops the server and all containers
func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.srv != nil {
		s.srv.Close()
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.store != nil {
		s.Require().NoError(s.dbConn.ClearSchema())
		s.store.Close(ctx)
	}
	for _, c := range []testcontainers.Container{s.kafkaContainer, s.zookeeper, s.postgresContainer} {
		if c != nil {
			s.Require().NoError(c.Terminate(ctx))
		}
	}
	if s.network != nil {
		s.network.Remove(ctx)
	}
}
