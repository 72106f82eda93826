package validation

// Severity classifies a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one rule violation or recommendation
type Finding struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// String renders the finding as "BR-xx: message"
func (f Finding) String() string {
	return f.Rule + ": " + f.Message
}

// Result contains the complete validation outcome
type Result struct {
	// Valid is true when no rule reported an error
	Valid bool `json:"is_valid"`

	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`

	// ChecksRun is the number of rules in the table, always 16
	ChecksRun int `json:"checks_run"`
}

// NewResult creates a new empty result
func NewResult() *Result {
	return &Result{
		Errors:   make([]Finding, 0),
		Warnings: make([]Finding, 0),
	}
}

// AddError records an error finding
func (r *Result) AddError(rule, msg string) {
	r.Errors = append(r.Errors, Finding{Rule: rule, Message: msg})
	r.Valid = false
}

// AddWarning records a warning finding
func (r *Result) AddWarning(rule, msg string) {
	r.Warnings = append(r.Warnings, Finding{Rule: rule, Message: msg})
}

// ComputeValidity sets Valid from the recorded errors
func (r *Result) ComputeValidity() {
	r.Valid = len(r.Errors) == 0
}

// ErrorMessages returns the errors rendered as strings
func (r *Result) ErrorMessages() []string {
	return render(r.Errors)
}

// WarningMessages returns the warnings rendered as strings
func (r *Result) WarningMessages() []string {
	return render(r.Warnings)
}

func render(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.String())
	}
	return out
}
