package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

const mqttColumns = `resource_id, host, port, username, password, client_id,
	topic_template, in_use_template, not_in_use_template,
	retry_enabled, max_retries, retry_delay_seconds, updated_at`

func (s *Store) UpsertMQTTConfig(ctx context.Context, c *store.MQTTConfig) apperrors.Error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mqtt_configs (`+mqttColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (resource_id) DO UPDATE SET
			host = EXCLUDED.host, port = EXCLUDED.port,
			username = EXCLUDED.username, password = EXCLUDED.password,
			client_id = EXCLUDED.client_id,
			topic_template = EXCLUDED.topic_template,
			in_use_template = EXCLUDED.in_use_template,
			not_in_use_template = EXCLUDED.not_in_use_template,
			retry_enabled = EXCLUDED.retry_enabled,
			max_retries = EXCLUDED.max_retries,
			retry_delay_seconds = EXCLUDED.retry_delay_seconds,
			updated_at = EXCLUDED.updated_at`,
		c.ResourceID, c.Host, c.Port, c.Username, c.Password, c.ClientID,
		c.TopicTemplate, c.InUseTemplate, c.NotInUseTemplate,
		c.RetryEnabled, c.MaxRetries, c.RetryDelaySeconds, c.UpdatedAt)
	return wrapErr(ctx, err, store.ErrNotFound.Msg("resource not found"))
}

func (s *Store) GetMQTTConfig(ctx context.Context, resourceID uuid.UUID) (*store.MQTTConfig, apperrors.Error) {
	var c store.MQTTConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT `+mqttColumns+` FROM mqtt_configs WHERE resource_id = $1`, resourceID).
		Scan(&c.ResourceID, &c.Host, &c.Port, &c.Username, &c.Password, &c.ClientID,
			&c.TopicTemplate, &c.InUseTemplate, &c.NotInUseTemplate,
			&c.RetryEnabled, &c.MaxRetries, &c.RetryDelaySeconds, &c.UpdatedAt)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("mqtt config not found"))
	}
	return &c, nil
}

func (s *Store) DeleteMQTTConfig(ctx context.Context, resourceID uuid.UUID) apperrors.Error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mqtt_configs WHERE resource_id = $1`, resourceID)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("mqtt config not found")
	}
	return nil
}

const webhookColumns = `id, resource_id, name, url, method, headers,
	in_use_template, not_in_use_template, active,
	retry_enabled, max_retries, retry_delay_seconds,
	signing_secret, signature_header, updated_at`

func (s *Store) CreateWebhookConfig(ctx context.Context, c *store.WebhookConfig) apperrors.Error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_configs (`+webhookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.ResourceID, c.Name, c.URL, c.Method, c.Headers,
		c.InUseTemplate, c.NotInUseTemplate, c.Active,
		c.RetryEnabled, c.MaxRetries, c.RetryDelaySeconds,
		c.SigningSecret, c.SignatureHeader, c.UpdatedAt)
	return wrapErr(ctx, err, store.ErrNotFound.Msg("resource not found"))
}

func (s *Store) GetWebhookConfig(ctx context.Context, id uuid.UUID) (*store.WebhookConfig, apperrors.Error) {
	var c store.WebhookConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE id = $1`, id).
		Scan(&c.ID, &c.ResourceID, &c.Name, &c.URL, &c.Method, &c.Headers,
			&c.InUseTemplate, &c.NotInUseTemplate, &c.Active,
			&c.RetryEnabled, &c.MaxRetries, &c.RetryDelaySeconds,
			&c.SigningSecret, &c.SignatureHeader, &c.UpdatedAt)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("webhook config not found"))
	}
	return &c, nil
}

func (s *Store) ListWebhookConfigs(ctx context.Context, resourceID uuid.UUID) ([]store.WebhookConfig, apperrors.Error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE resource_id = $1 ORDER BY id`, resourceID)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.WebhookConfig{}
	for rows.Next() {
		var c store.WebhookConfig
		if err := rows.Scan(&c.ID, &c.ResourceID, &c.Name, &c.URL, &c.Method, &c.Headers,
			&c.InUseTemplate, &c.NotInUseTemplate, &c.Active,
			&c.RetryEnabled, &c.MaxRetries, &c.RetryDelaySeconds,
			&c.SigningSecret, &c.SignatureHeader, &c.UpdatedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, c)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}

func (s *Store) UpdateWebhookConfig(ctx context.Context, c *store.WebhookConfig) apperrors.Error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE webhook_configs SET
			name = $2, url = $3, method = $4, headers = $5,
			in_use_template = $6, not_in_use_template = $7, active = $8,
			retry_enabled = $9, max_retries = $10, retry_delay_seconds = $11,
			signing_secret = $12, signature_header = $13, updated_at = $14
		WHERE id = $1`,
		c.ID, c.Name, c.URL, c.Method, c.Headers,
		c.InUseTemplate, c.NotInUseTemplate, c.Active,
		c.RetryEnabled, c.MaxRetries, c.RetryDelaySeconds,
		c.SigningSecret, c.SignatureHeader, c.UpdatedAt)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("webhook config not found")
	}
	return nil
}

func (s *Store) DeleteWebhookConfig(ctx context.Context, id uuid.UUID) apperrors.Error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_configs WHERE id = $1`, id)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("webhook config not found")
	}
	return nil
}
