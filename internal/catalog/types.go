package catalog

// OptionType distinguishes toggle options from multi-choice selectors.
type OptionType string

const (
	OptionBoolean OptionType = "boolean"
	OptionSelect  OptionType = "select"
)

// Trade is a top-level contracting category, e.g. "Bathroom Remodel".
type Trade struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	JobTypes []JobType `yaml:"job_types" json:"job_types"`
}

// JobType is a specific project within a trade.
//
// BaseScope is always populated. When ScopeSections is present it is
// authoritative for rendering and its flattened items equal BaseScope.
type JobType struct {
	ID             string         `yaml:"id" json:"id"`
	Name           string         `yaml:"name" json:"name"`
	BaseScope      []string       `yaml:"base_scope" json:"base_scope"`
	ScopeSections  []ScopeSection `yaml:"scope_sections,omitempty" json:"scope_sections,omitempty"`
	Options        []JobOption    `yaml:"options" json:"options"`
	BasePriceRange PriceRange     `yaml:"base_price_range" json:"base_price_range"`
	EstimatedDays  *DayRange      `yaml:"estimated_days,omitempty" json:"estimated_days,omitempty"`
	Warranty       string         `yaml:"warranty,omitempty" json:"warranty,omitempty"`
	Exclusions     []string       `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
}

// ScopeSection is a titled group of scope-of-work line items.
type ScopeSection struct {
	Title string   `yaml:"title,omitempty" json:"title,omitempty"`
	Items []string `yaml:"items" json:"items"`
}

// PriceRange is an inclusive price band in whole currency units.
type PriceRange struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

// DayRange is the expected duration of a job in working days.
type DayRange struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

// JobOption is a customization axis on a JobType.
// PriceModifier and ScopeAddition apply to boolean options; Choices to select options.
type JobOption struct {
	ID            string     `yaml:"id" json:"id"`
	Label         string     `yaml:"label" json:"label"`
	Type          OptionType `yaml:"type" json:"type"`
	PriceModifier *int       `yaml:"price_modifier,omitempty" json:"price_modifier,omitempty"`
	ScopeAddition string     `yaml:"scope_addition,omitempty" json:"scope_addition,omitempty"`
	Choices       []Choice   `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Choice is one selectable value of a select option.
type Choice struct {
	Value         string `yaml:"value" json:"value"`
	Label         string `yaml:"label" json:"label"`
	PriceModifier int    `yaml:"price_modifier" json:"price_modifier"`
	ScopeAddition string `yaml:"scope_addition,omitempty" json:"scope_addition,omitempty"`
}

// Option returns the option with the given id.
func (j JobType) Option(id string) (JobOption, bool) {
	for _, o := range j.Options {
		if o.ID == id {
			return o, true
		}
	}
	return JobOption{}, false
}

// Choice returns the choice with the given value.
func (o JobOption) Choice(value string) (Choice, bool) {
	for _, c := range o.Choices {
		if c.Value == value {
			return c, true
		}
	}
	return Choice{}, false
}

// Modifier returns the boolean price delta, treating an unset modifier as zero.
func (o JobOption) Modifier() int {
	if o.PriceModifier == nil {
		return 0
	}
	return *o.PriceModifier
}

// FlattenSections concatenates the items of every section in order.
func FlattenSections(sections []ScopeSection) []string {
	var items []string
	for _, s := range sections {
		items = append(items, s.Items...)
	}
	return items
}
