package keyring

import (
	"encoding/base64"

	"github.com/AlexZinkM/xdaghub/internal/model"
)

// Account types.
const (
	TypeDerived  = "derived"
	TypeImported = "imported"
)

// Account is a signing-capable entry of the keyring table.
type Account interface {
	Type() string
	Address() string
	PublicKey() []byte
	Keypair() *Keypair
}

// DerivedAccount comes from the vault seed.
type DerivedAccount struct {
	Index          uint32
	DerivationPath string
	keypair        *Keypair
}

func (a *DerivedAccount) Type() string      { return TypeDerived }
func (a *DerivedAccount) Address() string   { return a.keypair.Address() }
func (a *DerivedAccount) PublicKey() []byte { return a.keypair.PublicKey() }
func (a *DerivedAccount) Keypair() *Keypair { return a.keypair }

// ImportedAccount comes from an imported private key.
type ImportedAccount struct {
	keypair *Keypair
}

func (a *ImportedAccount) Type() string      { return TypeImported }
func (a *ImportedAccount) Address() string   { return a.keypair.Address() }
func (a *ImportedAccount) PublicKey() []byte { return a.keypair.PublicKey() }
func (a *ImportedAccount) Keypair() *Keypair { return a.keypair }

// Info returns the public view of an account.
func Info(a Account) model.AccountInfo {
	info := model.AccountInfo{
		Type:      a.Type(),
		Address:   a.Address(),
		PublicKey: base64.StdEncoding.EncodeToString(a.PublicKey()),
	}
	if d, ok := a.(*DerivedAccount); ok {
		info.DerivationPath = d.DerivationPath
	}
	return info
}
