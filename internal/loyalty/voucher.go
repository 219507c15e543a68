package loyalty

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/muflih795/YBG-Database-3/internal/store"
)

// VoucherAlphabet leaves out I, O, 0 and 1.
const VoucherAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	VoucherLength      = 10
	maxVoucherAttempts = 5
)

// NewVoucherCode returns VoucherLength characters drawn uniformly from
// VoucherAlphabet.
func NewVoucherCode() (string, error) {
	max := big.NewInt(int64(len(VoucherAlphabet)))
	buf := make([]byte, VoucherLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate voucher: %w", err)
		}
		buf[i] = VoucherAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// uniqueVoucher draws codes until one is unused in tx.
func (s *Service) uniqueVoucher(ctx context.Context, tx store.Tx) (string, error) {
	for i := 0; i < maxVoucherAttempts; i++ {
		code, err := s.newVoucher()
		if err != nil {
			return "", err
		}
		taken, err := tx.VoucherExists(ctx, code)
		if err != nil {
			return code, err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free voucher code after %d attempts", maxVoucherAttempts)
}
