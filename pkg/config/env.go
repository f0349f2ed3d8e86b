package config

const (
	EnvPrefix = "KIOSK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KIOSK_DB_DSN"
	EnvDBHost = "KIOSK_DB_HOST"
	EnvDBUser = "KIOSK_DB_USER"
	EnvDBName = "KIOSK_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
