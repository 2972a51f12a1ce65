package store

// Flags holds the two process-wide boot flags.
type Flags struct {
	ConsentGiven       bool
	OnboardingComplete bool
}
