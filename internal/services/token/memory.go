package token

import (
	"context"
	"sync"

	"CarbonPulse/internal/domain/service"
	"CarbonPulse/pkg/fixed"
)

// Memory is an in-process asset token for local runs and tests. Transfers
// are balance-checked but allowance is not enforced on TransferFrom; the
// market checks allowances before settling.
type Memory struct {
	mu         sync.Mutex
	balances   map[string]fixed.Num
	allowances map[string]map[string]fixed.Num
}

// NewMemory creates an empty in-memory token.
func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[string]fixed.Num),
		allowances: make(map[string]map[string]fixed.Num),
	}
}

// Mint adds tokens to a participant's balance.
func (m *Memory) Mint(participant string, amount fixed.Num) {
	m.mu.Lock()
	m.balances[participant] = m.balances[participant].Add(amount)
	m.mu.Unlock()
}

// Approve sets spender's allowance over owner's balance.
func (m *Memory) Approve(owner, spender string, amount fixed.Num) {
	m.mu.Lock()
	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[string]fixed.Num)
	}
	m.allowances[owner][spender] = amount
	m.mu.Unlock()
}

func (m *Memory) BalanceOf(ctx context.Context, participant string) (fixed.Num, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[participant], nil
}

func (m *Memory) Allowance(ctx context.Context, owner, spender string) (fixed.Num, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[owner][spender], nil
}

func (m *Memory) TransferFrom(ctx context.Context, from, to string, amount fixed.Num) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from].LT(amount) {
		return false, nil
	}
	m.balances[from] = m.balances[from].Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	return true, nil
}

var _ service.AssetToken = (*Memory)(nil)
