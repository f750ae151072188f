package sqlite

// Schema DDL. Account addresses and owners are stored as raw 32-byte blobs.
const (
	createAccounts = `CREATE TABLE IF NOT EXISTS accounts (
    address BLOB PRIMARY KEY,
    owner BLOB NOT NULL,
    data BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`

	createInvocations = `CREATE TABLE IF NOT EXISTS invocations (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    invocation_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    signers TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    created_at TEXT NOT NULL
);`
)

// Index DDL.
const (
	idxAccountsOwner   = `CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);`
	idxInvocationsName = `CREATE INDEX IF NOT EXISTS idx_invocations_name ON invocations(name);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createAccounts,
	createInvocations,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxAccountsOwner,
	idxInvocationsName,
}

// Statements used by the backend.
const (
	selectAccount     = `SELECT owner, data FROM accounts WHERE address = ?`
	selectAccounts    = `SELECT address, owner, data FROM accounts ORDER BY address`
	upsertAccount     = `INSERT INTO accounts (address, owner, data, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(address) DO UPDATE SET owner = excluded.owner, data = excluded.data, updated_at = excluded.updated_at`
	deleteAccount     = `DELETE FROM accounts WHERE address = ?`
	insertInvocation  = `INSERT INTO invocations (invocation_id, name, signers, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	selectInvocations = `SELECT invocation_id, name, signers, status, error, created_at FROM invocations ORDER BY seq DESC`
)
