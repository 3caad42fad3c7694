// Package catalog holds the read-only trade catalog and the registry of
// canonical default templates derived from it.
package catalog

import (
	"fmt"
	"slices"
)

// Catalog is the process-wide, immutable Trade → JobType → JobOption tree.
// It is built once at startup and is safe for concurrent reads.
type Catalog struct {
	trades   []Trade
	byTrade  map[string]int
	byJobKey map[string][2]int
}

// New validates trades and indexes them for lookup. Declared order is preserved.
func New(trades []Trade) (*Catalog, error) {
	if err := Validate(trades); err != nil {
		return nil, err
	}

	c := &Catalog{
		trades:   trades,
		byTrade:  make(map[string]int, len(trades)),
		byJobKey: make(map[string][2]int),
	}
	for i, t := range trades {
		c.byTrade[t.ID] = i
		for j, jt := range t.JobTypes {
			c.byJobKey[jt.ID] = [2]int{i, j}
		}
	}
	return c, nil
}

// ListTrades returns all trades in declared order.
func (c *Catalog) ListTrades() []Trade {
	return slices.Clone(c.trades)
}

// GetTrade returns the trade with the given id or ErrTradeNotFound.
func (c *Catalog) GetTrade(id string) (Trade, error) {
	i, ok := c.byTrade[id]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %q", ErrTradeNotFound, id)
	}
	return c.trades[i], nil
}

// GetJobType returns a job type scoped to its trade.
func (c *Catalog) GetJobType(tradeID, jobTypeID string) (JobType, error) {
	if _, err := c.GetTrade(tradeID); err != nil {
		return JobType{}, err
	}
	pos, ok := c.byJobKey[jobTypeID]
	if !ok || c.trades[pos[0]].ID != tradeID {
		return JobType{}, fmt.Errorf("%w: %q in trade %q", ErrJobTypeNotFound, jobTypeID, tradeID)
	}
	return c.trades[pos[0]].JobTypes[pos[1]], nil
}

// FindJobType resolves a job type by its catalog-wide id and returns its trade.
func (c *Catalog) FindJobType(jobTypeID string) (Trade, JobType, error) {
	pos, ok := c.byJobKey[jobTypeID]
	if !ok {
		return Trade{}, JobType{}, fmt.Errorf("%w: %q", ErrJobTypeNotFound, jobTypeID)
	}
	t := c.trades[pos[0]]
	return t, t.JobTypes[pos[1]], nil
}

// JobTypeCount returns the number of job types across all trades.
func (c *Catalog) JobTypeCount() int {
	return len(c.byJobKey)
}
