package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend (ProviderLocal or ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// Dir is the root directory for ProviderLocal.
	Dir string `yaml:"dir"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"access_key"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secret_key"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket holds every object this tool writes.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig returns a local directory store rooted at .pgdescribe.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderLocal,
		Dir:      ".pgdescribe",
		Bucket:   "pgdescribe",
	}
}
