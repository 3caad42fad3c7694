package catalog

// DefaultTemplate is the canonical, system-owned template for one job type.
type DefaultTemplate struct {
	TradeID   string
	TradeName string
	JobType   JobType
}

// Registry is a flat lookup of default templates keyed by job-type id.
// Iteration order follows the catalog: trades in declared order, then their job types.
type Registry struct {
	templates []DefaultTemplate
	byID      map[string]int
}

// NewRegistry derives the default template set from a catalog.
func NewRegistry(c *Catalog) *Registry {
	r := &Registry{byID: make(map[string]int, c.JobTypeCount())}
	for _, t := range c.trades {
		for _, jt := range t.JobTypes {
			r.byID[jt.ID] = len(r.templates)
			r.templates = append(r.templates, DefaultTemplate{
				TradeID:   t.ID,
				TradeName: t.Name,
				JobType:   jt,
			})
		}
	}
	return r
}

// Templates returns every default template in declared order.
func (r *Registry) Templates() []DefaultTemplate {
	out := make([]DefaultTemplate, len(r.templates))
	copy(out, r.templates)
	return out
}

// Lookup returns the default template for a job-type id.
func (r *Registry) Lookup(jobTypeID string) (DefaultTemplate, bool) {
	i, ok := r.byID[jobTypeID]
	if !ok {
		return DefaultTemplate{}, false
	}
	return r.templates[i], true
}

// Len returns the number of default templates.
func (r *Registry) Len() int {
	return len(r.templates)
}
