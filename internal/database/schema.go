package database

// schema is applied statement by statement; MySQL rejects multi-statement
// Exec unless the DSN enables it.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255),
    stripe_customer_id VARCHAR(255),
    role VARCHAR(16) NOT NULL DEFAULT 'user',
    credits_balance INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_customers_stripe (stripe_customer_id)
)`,
	`CREATE TABLE IF NOT EXISTS credits (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    trans_no VARCHAR(128) NOT NULL UNIQUE,
    user_id VARCHAR(64) NOT NULL,
    trans_type VARCHAR(32) NOT NULL,
    credits INT NOT NULL,
    description VARCHAR(255),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_credits_user (user_id)
)`,
	`CREATE TABLE IF NOT EXISTS products (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    image VARCHAR(512),
    active TINYINT(1) NOT NULL DEFAULT 1,
    credits INT NOT NULL DEFAULT 0,
    metadata JSON,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS prices (
    id VARCHAR(64) PRIMARY KEY,
    product_id VARCHAR(64) NOT NULL,
    active TINYINT(1) NOT NULL DEFAULT 1,
    unit_amount BIGINT NOT NULL DEFAULT 0,
    currency VARCHAR(8) NOT NULL DEFAULT 'usd',
    type VARCHAR(16) NOT NULL DEFAULT 'recurring',
    ` + "`interval`" + ` VARCHAR(16),
    interval_count INT NOT NULL DEFAULT 1,
    FOREIGN KEY (product_id) REFERENCES products(id)
)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    status VARCHAR(32) NOT NULL,
    price_id VARCHAR(64) NOT NULL,
    quantity INT NOT NULL DEFAULT 1,
    cancel_at_period_end TINYINT(1) NOT NULL DEFAULT 0,
    created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    current_period_start TIMESTAMP NULL,
    current_period_end TIMESTAMP NULL,
    ended_at TIMESTAMP NULL,
    KEY idx_subscriptions_user (user_id),
    FOREIGN KEY (price_id) REFERENCES prices(id)
)`,
	`CREATE TABLE IF NOT EXISTS payments (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    price_id VARCHAR(64),
    provider VARCHAR(64) NOT NULL,
    provider_payment_charge_id VARCHAR(128),
    currency VARCHAR(8) NOT NULL,
    amount BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    raw_payload TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_provider_charge (provider, provider_payment_charge_id)
)`,
	`CREATE TABLE IF NOT EXISTS generation_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    model VARCHAR(128) NOT NULL,
    provider VARCHAR(32) NOT NULL,
    prompt TEXT NOT NULL,
    size VARCHAR(16),
    cost INT NOT NULL DEFAULT 0,
    outcome VARCHAR(16) NOT NULL,
    error_code VARCHAR(32),
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_generation_logs_user (user_id)
)`,
}
