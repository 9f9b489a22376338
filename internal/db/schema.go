package db

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	scale INTEGER NOT NULL,
	withdrawal_threshold TEXT,
	sending_fee_fixed INTEGER,
	sending_fee_bps INTEGER,
	receiving_fee_fixed INTEGER,
	receiving_fee_bps INTEGER,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS peers (
	id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL REFERENCES assets(id),
	static_ilp_address TEXT NOT NULL UNIQUE,
	max_packet_amount INTEGER,
	outgoing_token TEXT NOT NULL,
	incoming_token TEXT NOT NULL,
	liquidity_threshold INTEGER,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS wallet_addresses (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	asset_id TEXT NOT NULL REFERENCES assets(id),
	public_name TEXT,
	total_events_amount TEXT NOT NULL DEFAULT '0',
	process_at TIMESTAMP,
	deactivated_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_wallet_addresses_process_at ON wallet_addresses(process_at) WHERE process_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS incoming_payments (
	id TEXT PRIMARY KEY,
	wallet_address_id TEXT NOT NULL REFERENCES wallet_addresses(id),
	asset_id TEXT NOT NULL REFERENCES assets(id),
	incoming_amount TEXT,
	received_amount TEXT NOT NULL DEFAULT '0',
	state TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	connection_id TEXT,
	metadata TEXT,
	process_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_incoming_payments_process_at ON incoming_payments(process_at) WHERE process_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS quotes (
	id TEXT PRIMARY KEY,
	wallet_address_id TEXT NOT NULL REFERENCES wallet_addresses(id),
	asset_id TEXT NOT NULL REFERENCES assets(id),
	receiver TEXT NOT NULL,
	debit_amount TEXT NOT NULL,
	receive_amount TEXT NOT NULL,
	max_packet_amount INTEGER NOT NULL,
	min_exchange_rate TEXT NOT NULL,
	low_estimated_exchange_rate TEXT NOT NULL,
	high_estimated_exchange_rate TEXT NOT NULL,
	receive_asset_code TEXT NOT NULL,
	receive_asset_scale INTEGER NOT NULL,
	fee_id TEXT,
	expires_at TIMESTAMP NOT NULL,
	client TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS outgoing_payment_grants (
	id TEXT PRIMARY KEY,
	receiver TEXT,
	debit_amount_value TEXT,
	debit_amount_asset TEXT,
	debit_amount_scale INTEGER,
	receive_amount_value TEXT,
	receive_amount_asset TEXT,
	receive_amount_scale INTEGER,
	interval TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS outgoing_payments (
	id TEXT PRIMARY KEY,
	wallet_address_id TEXT NOT NULL REFERENCES wallet_addresses(id),
	quote_id TEXT NOT NULL UNIQUE REFERENCES quotes(id),
	state TEXT NOT NULL,
	sent_amount TEXT NOT NULL DEFAULT '0',
	state_attempts INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	peer_id TEXT REFERENCES peers(id),
	grant_id TEXT REFERENCES outgoing_payment_grants(id),
	metadata TEXT,
	process_at TIMESTAMP,
	claimed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_outgoing_payments_claim ON outgoing_payments(process_at, claimed_at) WHERE process_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS webhook_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	data TEXT NOT NULL,
	withdrawal_account_id TEXT,
	withdrawal_asset_id TEXT,
	withdrawal_amount TEXT,
	status_code INTEGER,
	attempts INTEGER NOT NULL DEFAULT 0,
	process_at TIMESTAMP,
	claimed_at TIMESTAMP,
	dead BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_webhook_events_claim ON webhook_events(process_at, claimed_at) WHERE process_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS idempotency_keys (
	operation TEXT NOT NULL,
	key TEXT NOT NULL,
	result BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (operation, key)
);
`
