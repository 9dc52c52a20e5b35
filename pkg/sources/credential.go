package sources

import (
	"encoding/json"
	"fmt"
)

// Credential is the opaque credential blob an operator attaches to a role,
// decoded. It selects the source driver and carries the connection string.
type Credential struct {
	// Driver is "postgres" or "mssql".
	Driver string `json:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `json:"dsn"`
}

// ParseCredential decodes a credential blob.
func ParseCredential(blob []byte) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(blob, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential blob: %w", err)
	}
	if cred.Driver == "" {
		return nil, fmt.Errorf("credential blob missing driver")
	}
	if cred.DSN == "" {
		return nil, fmt.Errorf("credential blob missing dsn")
	}
	return &cred, nil
}
