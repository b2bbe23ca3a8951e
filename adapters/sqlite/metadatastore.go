package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/rpcgate/core/export"
	"github.com/artpar/rpcgate/domain/address"
	"github.com/artpar/rpcgate/domain/service"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// MetadataStore implements ports.MetadataService using SQLite.
type MetadataStore struct {
	db *DB
}

// NewMetadataStore creates a new SQLite metadata store.
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// PublishServiceDefinition upserts the definition row for the exported
// address, keyed by service key and protocol.
func (s *MetadataStore) PublishServiceDefinition(ctx context.Context, url address.URL) error {
	key := service.Key(
		url.Param(export.InterfaceKey),
		url.Param(export.GroupKey),
		url.Param(export.VersionKey),
	)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_definitions (service_key, protocol, url, revision, methods)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (service_key, protocol) DO UPDATE SET
			url = excluded.url,
			revision = excluded.revision,
			methods = excluded.methods,
			published_at = CURRENT_TIMESTAMP
	`, key, url.Scheme(), url.String(), url.Param(export.RevisionKey), url.Param(export.MethodsKey))
	return err
}

// Definition is one published service definition.
type Definition struct {
	ServiceKey string
	Protocol   string
	URL        string
	Revision   string
	Methods    string
}

// Get returns the definition published for a service key and protocol.
func (s *MetadataStore) Get(ctx context.Context, serviceKey, protocol string) (Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT service_key, protocol, url, revision, methods
		FROM service_definitions
		WHERE service_key = ? AND protocol = ?
	`, serviceKey, protocol)

	var d Definition
	err := row.Scan(&d.ServiceKey, &d.Protocol, &d.URL, &d.Revision, &d.Methods)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, err
	}
	return d, nil
}

// List returns all definitions published for a service key.
func (s *MetadataStore) List(ctx context.Context, serviceKey string) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_key, protocol, url, revision, methods
		FROM service_definitions
		WHERE service_key = ?
		ORDER BY protocol
	`, serviceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.ServiceKey, &d.Protocol, &d.URL, &d.Revision, &d.Methods); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}
