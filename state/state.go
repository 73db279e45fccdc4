package state

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"lendpool/pool"
	"lendpool/storage"
)

var (
	keyTotals    = []byte("pool/totals")
	keyLoanIndex = []byte("pool/loans/index")

	loanKeyPrefix = "pool/loan/"
)

// PoolState persists the engine-owned records (loan registry and reserve
// totals) as JSON documents in the key-value store.
type PoolState struct {
	db storage.Database
}

// NewPoolState wraps the database in the engine persistence contract.
func NewPoolState(db storage.Database) *PoolState {
	return &PoolState{db: db}
}

func loanKey(borrower common.Address) []byte {
	return append([]byte(loanKeyPrefix), borrower.Bytes()...)
}

// GetLoan returns the borrower's loan slot, or nil when none is open.
func (s *PoolState) GetLoan(borrower common.Address) (*pool.Loan, error) {
	raw, err := s.db.Get(loanKey(borrower))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loan pool.Loan
	if err := json.Unmarshal(raw, &loan); err != nil {
		return nil, err
	}
	loan.EnsureDefaults()
	return &loan, nil
}

// PutLoan stores the loan slot and maintains the borrower index.
func (s *PoolState) PutLoan(loan *pool.Loan) error {
	if loan == nil {
		return nil
	}
	raw, err := json.Marshal(loan)
	if err != nil {
		return err
	}
	if err := s.db.Put(loanKey(loan.Borrower), raw); err != nil {
		return err
	}
	index, err := s.loanIndex()
	if err != nil {
		return err
	}
	hex := loan.Borrower.Hex()
	for _, existing := range index {
		if existing == hex {
			return nil
		}
	}
	index = append(index, hex)
	sort.Strings(index)
	return s.putLoanIndex(index)
}

// DeleteLoan removes the loan slot and its index entry.
func (s *PoolState) DeleteLoan(borrower common.Address) error {
	if err := s.db.Delete(loanKey(borrower)); err != nil {
		return err
	}
	index, err := s.loanIndex()
	if err != nil {
		return err
	}
	hex := borrower.Hex()
	filtered := index[:0]
	for _, existing := range index {
		if existing != hex {
			filtered = append(filtered, existing)
		}
	}
	return s.putLoanIndex(filtered)
}

// ListLoans returns every open loan slot in borrower order.
func (s *PoolState) ListLoans() ([]*pool.Loan, error) {
	index, err := s.loanIndex()
	if err != nil {
		return nil, err
	}
	loans := make([]*pool.Loan, 0, len(index))
	for _, hex := range index {
		loan, err := s.GetLoan(common.HexToAddress(hex))
		if err != nil {
			return nil, err
		}
		if loan != nil {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}

// GetTotals returns the recorded reserve totals, or nil before first write.
func (s *PoolState) GetTotals() (*pool.ReserveTotals, error) {
	raw, err := s.db.Get(keyTotals)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var totals pool.ReserveTotals
	if err := json.Unmarshal(raw, &totals); err != nil {
		return nil, err
	}
	totals.EnsureDefaults()
	return &totals, nil
}

// PutTotals stores the reserve totals.
func (s *PoolState) PutTotals(totals *pool.ReserveTotals) error {
	if totals == nil {
		return nil
	}
	raw, err := json.Marshal(totals)
	if err != nil {
		return err
	}
	return s.db.Put(keyTotals, raw)
}

func (s *PoolState) loanIndex() ([]string, error) {
	raw, err := s.db.Get(keyLoanIndex)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var index []string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *PoolState) putLoanIndex(index []string) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return s.db.Put(keyLoanIndex, raw)
}
