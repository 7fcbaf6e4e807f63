package model

// VaultFile represents the encrypted vault blob kept in the durable store
type VaultFile struct {
	Version    int    `json:"v"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	ScryptN    int    `json:"scrypt_N"`
	ScryptR    int    `json:"scrypt_r"`
	ScryptP    int    `json:"scrypt_p"`
	CipherText string `json:"cipherText"`
}

// VaultData represents decrypted vault data
type VaultData struct {
	Entropy          []byte            `json:"entropy"` // nil when the vault holds no seed (stored as base64 in JSON)
	ImportedKeypairs []ExportedKeypair `json:"importedKeypairs"`
	CreatedAt        string            `json:"createdAt"`
}

// ExportedKeypair is the portable form of a single account key
type ExportedKeypair struct {
	Schema     string `json:"schema"`
	PrivateKey string `json:"privateKey"` // base64 of the 32-byte secret
}

// AccountInfo is the public view of a keyring account
type AccountInfo struct {
	Type           string `json:"type"` // "derived" or "imported"
	Address        string `json:"address"`
	PublicKey      string `json:"publicKey"` // base64, compressed
	DerivationPath string `json:"derivationPath,omitempty"`
}

// AccountQRResponse represents response for GET /accounts/qr
type AccountQRResponse struct {
	Address string `json:"address"`
	QR      string `json:"QR"` // base64 PNG
}
