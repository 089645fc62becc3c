package config

// Template is written next to the executable on first start. Every setting is
// commented out so the built-in defaults apply until edited.
const Template = `# inventory-server configuration
#
# Every key can also be set with an INVENTORY_ prefixed environment variable,
# e.g. INVENTORY_BIND or INVENTORY_DB_PATH. Environment wins over this file.

# Address to listen on.
# bind = "0.0.0.0:8443"

# SQLite database file. Defaults to inventory.db next to the executable.
# db_path = "/var/lib/inventory/inventory.db"

# Serve HTTPS when both are set.
# tls_cert = "/etc/inventory/cert.pem"
# tls_key  = "/etc/inventory/key.pem"

# Log every accepted check-in.
# debug = false

# log_level  = "info"   # trace, debug, info, warn, error
# log_format = "json"   # json or console

# Write path protection.
# max_body_bytes         = 65536
# rate_per_second        = 5.0
# rate_burst             = 20
# limiter_idle_ttl       = "10m"
# limiter_sweep_interval = "1m"
# trust_proxy_headers    = false

# HTML views.
# ui_requests_per_minute = 120
# cors_allowed_origins   = []

# request_timeout = "30s"
# shutdown_grace  = "10s"

# Announce accepted check-ins on NATS.
# nats_url     = "nats://127.0.0.1:4222"
# nats_subject = "inventory.checkin.recorded"

# OTLP/HTTP trace exporter, e.g. "http://127.0.0.1:4318".
# otlp_endpoint = ""
`
