package extension

// Default priority bands. They are conventions that keep unrelated extension
// authors from colliding; any int is a valid priority, including negative
// and duplicate values.
const (
	// PriorityRegisterMappingProfile registers object-mapping profiles.
	PriorityRegisterMappingProfile = 1

	// PriorityRegisterImplementations registers concrete service implementations.
	PriorityRegisterImplementations = 10

	// PriorityRegisterDefaultImplementations registers fallbacks, usually with TryAdd*.
	PriorityRegisterDefaultImplementations = 50

	// PriorityMainApplication configures the main application.
	PriorityMainApplication = 100

	// PriorityTheme configures the theme, after everything else.
	PriorityTheme = 1000
)
