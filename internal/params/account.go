package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountID is a ledger entity identifier in shard.realm.num form.
type AccountID struct {
	Shard uint32
	Realm uint64
	Num   uint64
}

// String renders the id as shard.realm.num.
func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Shard, a.Realm, a.Num)
}

// ParseAccountID parses a shard.realm.num identifier.
func ParseAccountID(s string) (AccountID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return AccountID{}, fmt.Errorf("account id %q: want shard.realm.num", s)
	}
	shard, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: shard: %w", s, err)
	}
	realm, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: realm: %w", s, err)
	}
	num, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: num: %w", s, err)
	}
	return AccountID{Shard: uint32(shard), Realm: realm, Num: num}, nil
}

// IsEVMAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsEVMAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// validateAddress accepts either an account id or an EVM address.
func validateAddress(s string) error {
	if IsEVMAddress(s) {
		return nil
	}
	_, err := ParseAccountID(s)
	return err
}
