package export

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"dokan/internal/domain"
	"dokan/internal/inventory"
	"dokan/internal/session"
)

const BackupVersion = 1

// BackupFilename names the backup download for a shop.
func BackupFilename(now time.Time) string {
	return "Dokan_Backup_" + now.Format(domain.DateLayout) + ".json"
}

// WriteBackup serializes the full state, credential hashes included, so
// ReadBackup can restore it unchanged.
func WriteBackup(w io.Writer, st session.State, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(domain.Backup{
		Version:      BackupVersion,
		ExportedAt:   now.UTC(),
		Profile:      st.Profile,
		Transactions: st.Transactions,
	})
}

// ReadBackup parses a backup produced by WriteBackup. Unknown versions,
// payloads without a profile id and records that break the stock or ledger
// rules are rejected as validation errors.
func ReadBackup(r io.Reader) (session.State, error) {
	var b domain.Backup
	dec := json.NewDecoder(r)
	if err := dec.Decode(&b); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return session.State{}, err
		}
		return session.State{}, domain.Validation("backup", errors.Wrap(err, "malformed backup").Error())
	}
	if b.Version != BackupVersion {
		return session.State{}, domain.Validation("version", "unsupported backup version")
	}
	if b.Profile.ID == "" {
		return session.State{}, domain.Validation("profile.id", "is required")
	}
	if err := checkBackup(b); err != nil {
		return session.State{}, err
	}
	st := session.Empty(b.Profile)
	if b.Transactions != nil {
		st.Transactions = b.Transactions
	}
	return st, nil
}

func checkBackup(b domain.Backup) error {
	productIDs := make(map[string]struct{}, len(b.Profile.Products))
	for i, p := range b.Profile.Products {
		if err := inventory.ValidateProduct(p); err != nil {
			return invalidAt("products", i, err)
		}
		if _, dup := productIDs[p.ID]; dup {
			return domain.Validation(fmt.Sprintf("products[%d].id", i), "is used more than once")
		}
		productIDs[p.ID] = struct{}{}
	}

	saleIDs := make(map[string]struct{}, len(b.Profile.Sales))
	for i, rec := range b.Profile.Sales {
		if rec.ID == "" {
			return domain.Validation(fmt.Sprintf("sales[%d].id", i), "is required")
		}
		if _, dup := saleIDs[rec.ID]; dup {
			return domain.Validation(fmt.Sprintf("sales[%d].id", i), "is used more than once")
		}
		saleIDs[rec.ID] = struct{}{}
		if rec.Qty <= 0 {
			return domain.Validation(fmt.Sprintf("sales[%d].qty", i), "must be greater than zero")
		}
		if rec.SellPrice.IsNegative() || rec.BuyPrice.IsNegative() {
			return domain.Validation(fmt.Sprintf("sales[%d]", i), "prices must not be negative")
		}
	}

	txIDs := make(map[string]struct{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		if !tx.Type.Valid() || !tx.Amount.IsPositive() {
			return domain.Validation("transactions", errors.Errorf("entry %d is not a valid ledger entry", i).Error())
		}
		if tx.ID == "" {
			return domain.Validation(fmt.Sprintf("transactions[%d].id", i), "is required")
		}
		if _, dup := txIDs[tx.ID]; dup {
			return domain.Validation(fmt.Sprintf("transactions[%d].id", i), "is used more than once")
		}
		txIDs[tx.ID] = struct{}{}
	}
	return nil
}

func invalidAt(list string, i int, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Field != "" {
		return domain.Validation(fmt.Sprintf("%s[%d].%s", list, i, derr.Field), derr.Message)
	}
	return domain.Validation(fmt.Sprintf("%s[%d]", list, i), err.Error())
}
