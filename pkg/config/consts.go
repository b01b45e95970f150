package config

const (
	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "ingresso"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "INGRESSO_DB_DSN"
	EnvDBHost = "INGRESSO_DB_HOST"
	EnvDBUser = "INGRESSO_DB_USER"
	EnvDBName = "INGRESSO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
