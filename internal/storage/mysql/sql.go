package mysql

const upsertProviderSQL = `
INSERT INTO custom_providers
  (id, name, endpoint, auth, mapping, rate_limit_rpm, timeout_ms)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name           = VALUES(name),
  endpoint       = VALUES(endpoint),
  auth           = VALUES(auth),
  mapping        = VALUES(mapping),
  rate_limit_rpm = VALUES(rate_limit_rpm),
  timeout_ms     = VALUES(timeout_ms),
  updated_at     = CURRENT_TIMESTAMP
`

const deleteProviderSQL = `DELETE FROM custom_providers WHERE id = ?`

const listProvidersSQL = `
SELECT id, name, endpoint, auth, mapping, rate_limit_rpm, timeout_ms
FROM custom_providers
ORDER BY id
`
