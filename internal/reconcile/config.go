package reconcile

type Config struct {
	// BatchSize is the number of items reconciled concurrently and then
	// flushed to the catalog together.
	BatchSize int `yaml:"batch_size" env:"RECONCILE_BATCH_SIZE" env-default:"400" validate:"min=1"`

	// MaxInFlight caps the number of items of a batch being reconciled at
	// once. Zero allows the whole batch to run concurrently.
	MaxInFlight int `yaml:"max_in_flight" env:"RECONCILE_MAX_IN_FLIGHT" env-default:"0" validate:"min=0"`

	// MaxCast limits the number of cast credits stored per movie. Zero stores
	// the full cast.
	MaxCast int `yaml:"max_cast" env:"RECONCILE_MAX_CAST" env-default:"0" validate:"min=0"`
}
