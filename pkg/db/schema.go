package db

// Schema defines the SQLite schema for provisioning attempt history.
// One row per attempt, updated as the state machine advances.
const Schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subscriber_number TEXT NOT NULL,
    transaction_id TEXT,
    gateway_url TEXT,
    status TEXT NOT NULL CHECK(status IN ('pending', 'subscribing', 'ready', 'new', 'failed')),
    failure_kind TEXT,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_attempts_subscriber ON attempts(subscriber_number);
CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);
CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts(created_at);
`

// Status constants
const (
	// StatusPending: attempt created, gateway exchanges in progress.
	StatusPending = "pending"
	// StatusSubscribing: subscribe link invoked, awaiting confirmation.
	StatusSubscribing = "subscribing"
	// StatusReady: confirmation reported a ready subscriber.
	StatusReady = "ready"
	// StatusNew: confirmation reported a new subscriber; full provisioning
	// continues elsewhere.
	StatusNew = "new"
	// StatusFailed: attempt aborted.
	StatusFailed = "failed"
)

// Attempt represents one provisioning attempt record
type Attempt struct {
	ID               int64
	SubscriberNumber string
	TransactionID    string
	GatewayURL       string
	Status           string
	FailureKind      string
	ErrorMessage     string
	CreatedAt        string
	UpdatedAt        string
}
