package schema

// Strategy is a validate/transform pair for one semantic type.
//
// Validate reports whether a raw value belongs to the type. Transform
// converts a raw value to canonical form (float64 for numeric kinds,
// time.Time for dates, bool for booleans); it may fail independently of
// Validate for edge encodings, in which case the caller keeps the raw value.
type Strategy struct {
	Kind      Kind
	Validate  func(string) bool
	Transform func(string) (any, error)
}

// registry holds the candidate strategies in scoring order. Order matters
// only for deterministic iteration; scores decide the winner.
//
// New types register here; inference logic never special-cases a kind.
var registry = []Strategy{
	{Kind: KindNumeric, Validate: validateNumeric, Transform: transformNumeric},
	{Kind: KindCurrency, Validate: validateCurrency, Transform: transformCurrency},
	{Kind: KindPercentage, Validate: validatePercentage, Transform: transformPercentage},
	{Kind: KindDate, Validate: validateDate, Transform: transformDate},
	{Kind: KindBoolean, Validate: validateBoolean, Transform: transformBoolean},
	{Kind: KindEmail, Validate: validateEmail, Transform: transformIdentity},
	{Kind: KindURL, Validate: validateURL, Transform: transformIdentity},
	{Kind: KindPhone, Validate: validatePhone, Transform: transformIdentity},
	{Kind: KindZipcode, Validate: validateZipcode, Transform: transformIdentity},
	{Kind: KindSSN, Validate: validateSSN, Transform: transformIdentity},
}

// Strategies returns the registered strategies.
func Strategies() []Strategy { return registry }

// StrategyFor returns the strategy registered for kind, if any.
func StrategyFor(kind Kind) (Strategy, bool) {
	for _, s := range registry {
		if s.Kind == kind {
			return s, true
		}
	}
	return Strategy{}, false
}
