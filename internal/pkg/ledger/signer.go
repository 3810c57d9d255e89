package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/do/v2"
)

var ErrSignerMissing = errors.New("transaction does not require the configured signer")

// KeypairSigner signs with a key loaded from a keygen JSON file.
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSignerService(i do.Injector) (*KeypairSigner, error) {
	path := do.MustInvokeNamed[string](i, "keypair")

	return LoadKeypair(path)
}

func LoadKeypair(path string) (*KeypairSigner, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}

		path = filepath.Join(home, rest)
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}

	return NewKeypairSigner(key), nil
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{
		key: key,
	}
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) Sign(tx *solana.Transaction) error {
	owner := s.key.PublicKey()

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &s.key
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignerMissing, err)
	}

	return nil
}
