package ops

import (
	"os"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"

	delegator "spotengine/internal/order/delegator/binance"
	"spotengine/pkg/exception"
)

const (
	envAPIKey    = "BINANCE_API_KEY"
	envSecretKey = "BINANCE_SECRET_KEY"
)

// LoadCredentials reads API keys from a JSON keys file when keysPath is set,
// otherwise from the environment after loading envPath (or ./.env) if present.
func LoadCredentials(envPath, keysPath string) (delegator.Credentials, error) {
	var cred delegator.Credentials
	if keysPath != "" {
		data, err := os.ReadFile(keysPath)
		if err != nil {
			return cred, errors.Wrap(err, "read keys file").With("path", keysPath)
		}
		if err := sonic.Unmarshal(data, &cred); err != nil {
			return cred, errors.Wrap(err, "decode keys file").With("path", keysPath)
		}
	} else {
		if envPath != "" {
			if err := godotenv.Load(envPath); err != nil {
				return cred, errors.Wrap(err, "load env file").With("path", envPath)
			}
		} else {
			_ = godotenv.Load()
		}
		cred.APIKey = os.Getenv(envAPIKey)
		cred.SecretKey = os.Getenv(envSecretKey)
	}

	if cred.APIKey == "" || cred.SecretKey == "" {
		return cred, exception.ErrMissingAPIKey
	}
	return cred, nil
}
