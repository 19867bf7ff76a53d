// Package accounts manages the chart of accounts: the hierarchy, type and
// activation rules every other ledger component relies on.
package accounts

import (
	"context"
	"strings"
	"time"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/ledger"
)

// Service owns chart-of-accounts rules over a transactional store.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the chart-of-accounts manager.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// CreateInput carries the fields for a new account. Type is fixed forever
// after creation.
type CreateInput struct {
	Code     string
	Name     string
	NameAlt  string
	Type     ledger.AccountType
	ParentID string
}

// Create adds an account to the chart. Level is computed from the parent
// (0 for roots). A child's type is not required to match its parent's; the
// chart allows mixed subtrees.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.Account, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" {
		return ledger.Account{}, ledger.Validationf("account code is required")
	}
	if name == "" {
		return ledger.Account{}, ledger.Validationf("account name is required")
	}
	if !in.Type.Valid() {
		return ledger.Account{}, ledger.Validationf("invalid account type %q", in.Type)
	}

	acc := ledger.Account{
		ID:        ids.New(),
		Code:      code,
		Name:      name,
		NameAlt:   strings.TrimSpace(in.NameAlt),
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.AccountByCode(ctx, code); err == nil {
			return ledger.Validationf("account code %q already exists", code)
		} else if !ledger.IsNotFound(err) {
			return err
		}
		if in.ParentID != "" {
			parent, err := tx.Account(ctx, in.ParentID)
			if err != nil {
				return err
			}
			acc.Level = parent.Level + 1
		}
		return tx.CreateAccount(ctx, &acc)
	})
	if err != nil {
		return ledger.Account{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "accounts", acc.ID, "INSERT", nil, map[string]any{
		"code":         acc.Code,
		"name":         acc.Name,
		"account_type": string(acc.Type),
		"parent_id":    acc.ParentID,
		"level":        acc.Level,
	})
	return acc, nil
}

// UpdateInput holds the mutable account fields. Nil pointers leave the field
// untouched. Code, type, and parent are immutable.
type UpdateInput struct {
	Name     *string
	NameAlt  *string
	IsActive *bool
}

// Update changes display names or the active flag on an existing account.
// Unlike Deactivate it performs no reference checks; use it to reactivate
// a retired account or rename one in place.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (ledger.Account, error) {
	var updated ledger.Account
	old := map[string]any{}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		acc, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ledger.Validationf("account name is required")
			}
			old["name"] = acc.Name
			acc.Name = name
		}
		if in.NameAlt != nil {
			old["name_alt"] = acc.NameAlt
			acc.NameAlt = strings.TrimSpace(*in.NameAlt)
		}
		if in.IsActive != nil {
			old["is_active"] = acc.IsActive
			acc.IsActive = *in.IsActive
		}
		if err := tx.UpdateAccount(ctx, &acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "accounts", id, "UPDATE", old, map[string]any{
		"name":      updated.Name,
		"name_alt":  updated.NameAlt,
		"is_active": updated.IsActive,
	})
	return updated, nil
}

// Get returns one account by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Account, error) {
	return s.store.Account(ctx, id)
}

// GetByCode returns one account by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (ledger.Account, error) {
	return s.store.AccountByCode(ctx, strings.TrimSpace(code))
}

// List returns accounts matching the filter, ordered by code.
func (s *Service) List(ctx context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	return s.store.Accounts(ctx, f)
}

// Node is one account with its active children, ordered by code.
type Node struct {
	Account  ledger.Account `json:"account"`
	Children []Node         `json:"children,omitempty"`
}

// Hierarchy builds the ordered tree of active accounts under parentID
// ("" for the whole chart). Inactive accounts and their subtrees are
// excluded.
func (s *Service) Hierarchy(ctx context.Context, parentID string) ([]Node, error) {
	all, err := s.store.Accounts(ctx, ledger.AccountFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	// Arena keyed by parent id so traversal cost does not depend on depth.
	byParent := make(map[string][]ledger.Account)
	for _, a := range all {
		byParent[a.ParentID] = append(byParent[a.ParentID], a)
	}
	var build func(pid string) []Node
	build = func(pid string) []Node {
		children := byParent[pid]
		nodes := make([]Node, 0, len(children))
		for _, c := range children {
			nodes = append(nodes, Node{Account: c, Children: build(c.ID)})
		}
		return nodes
	}
	return build(parentID), nil
}

// Deactivate retires an account. It fails with a StateError while the
// account still has active children or is referenced by any journal line;
// accounts are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		acc, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		if !acc.IsActive {
			return ledger.Statef("account %s is already inactive", acc.Code)
		}
		children, err := tx.Accounts(ctx, ledger.AccountFilter{ParentID: &id, ActiveOnly: true})
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ledger.Statef("account %s has %d active child accounts", acc.Code, len(children))
		}
		used, err := tx.AccountHasLines(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ledger.Statef("account %s is referenced by journal lines", acc.Code)
		}
		acc.IsActive = false
		return tx.UpdateAccount(ctx, &acc)
	})
	if err != nil {
		return err
	}

	_ = s.trail.LogAuditTrail(ctx, "accounts", id, "UPDATE",
		map[string]any{"is_active": true},
		map[string]any{"is_active": false})
	return nil
}
