package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gocql/gocql"

	"tradepost/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}

	baseCluster := gocql.NewCluster(cfg.ScyllaHosts...)
	baseCluster.Timeout = cfg.ScyllaTimeout
	setAuth(baseCluster, cfg)

	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.Keyspace = cfg.ScyllaKeyspace
	setAuth(cluster, cfg)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	messages := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages (
	id bigint PRIMARY KEY,
	sender_id text,
	receiver_id text,
	content text,
	is_read boolean,
	created_at timestamp
);`, cfg.ScyllaKeyspace)
	if err := session.Query(messages).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	byUser := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_user (
	user_id text,
	created_at timestamp,
	id bigint,
	sender_id text,
	receiver_id text,
	content text,
	is_read boolean,
	PRIMARY KEY (user_id, created_at, id)
) WITH CLUSTERING ORDER BY (created_at ASC, id ASC);`, cfg.ScyllaKeyspace)
	if err := session.Query(byUser).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages_by_user table: %w", err)
	}

	seq := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.message_seq (
	name text PRIMARY KEY,
	value bigint
);`, cfg.ScyllaKeyspace)
	if err := session.Query(seq).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create message_seq table: %w", err)
	}
	return nil
}

func setAuth(cluster *gocql.ClusterConfig, cfg config.Config) {
	if cfg.ScyllaUsername == "" {
		return
	}
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.ScyllaUsername,
		Password: cfg.ScyllaPassword,
	}
	// avoid long stalls on auth/connect
	cluster.ConnectTimeout = cfg.ScyllaTimeout
	cluster.Timeout = cfg.ScyllaTimeout
}
