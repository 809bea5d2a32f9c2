package model

// All returns every persisted model, in dependency order, for migrations and tests.
func All() []any {
	return []any{
		&User{},
		&Token{},
		&File{},
		&Template{},
		&SignatureSpot{},
		&Document{},
		&Signer{},
		&SignatureAsset{},
		&AuditEvent{},
		&SignerSession{},
		&StorageConnection{},
		&EmailLog{},
		&DocumentExport{},
	}
}
