package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	// FileName is the configuration file looked up next to the executable.
	FileName = "tumblrclient.config"
	// Section holds every key of the client.
	Section = "tumblrclient"
	// EnvPrefix prefixes the environment overrides, e.g. TUMBLRCLIENT_PASSWORD.
	EnvPrefix = "tumblrclient"
)

// Keys lists the required keys of Section, in file order.
var Keys = []string{
	"consumer_key",
	"consumer_secret",
	"account",
	"password",
	"access_token_url",
	"limit",
	"blog",
}

// Credentials holds the account, consumer and operational settings of one
// client. It is built once and passed by value.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Account        string
	Password       string
	AccessTokenURL string
	Limit          int
	Blog           string
}

// Validate reports the first missing field.
func (c Credentials) Validate() error {
	fields := []struct {
		key   string
		value string
	}{
		{"consumer_key", c.ConsumerKey},
		{"consumer_secret", c.ConsumerSecret},
		{"account", c.Account},
		{"password", c.Password},
		{"access_token_url", c.AccessTokenURL},
		{"blog", c.Blog},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &Error{Kind: KindMissingKey, Key: f.key}
		}
	}
	if c.Limit <= 0 {
		return &Error{Kind: KindMalformed, Key: "limit", Err: fmt.Errorf("limit must be positive, got %d", c.Limit)}
	}
	return nil
}

// DefaultPath returns FileName in the directory of the running executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// Load reads the credentials from the INI file at path, or from DefaultPath
// when path is empty. TUMBLRCLIENT_<KEY> environment variables override the
// values found in the file. Every failure is a *Error.
func Load(path string) (Credentials, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Credentials{}, &Error{Kind: KindUnexpected, Err: err}
		}
		path = p
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, &Error{Kind: KindNotFound, Path: path, Err: err}
		}
		return Credentials{}, &Error{Kind: KindUnexpected, Path: path, Err: err}
	}
	if fi.IsDir() {
		return Credentials{}, &Error{Kind: KindNotFound, Path: path, Err: fmt.Errorf("%s is a directory", path)}
	}

	file, err := ini.Load(path)
	if err != nil {
		return Credentials{}, &Error{Kind: KindMalformed, Path: path, Err: err}
	}
	sec, err := file.GetSection(Section)
	if err != nil {
		return Credentials{}, &Error{Kind: KindMissingSection, Path: path, Err: err}
	}

	v := viper.New()
	for _, k := range sec.Keys() {
		v.SetDefault(k.Name(), k.String())
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	values := make(map[string]string, len(Keys))
	for _, key := range Keys {
		val := strings.TrimSpace(v.GetString(key))
		if val == "" {
			return Credentials{}, &Error{Kind: KindMissingKey, Path: path, Key: key}
		}
		values[key] = val
	}

	limit, err := strconv.Atoi(values["limit"])
	if err != nil {
		return Credentials{}, &Error{Kind: KindMalformed, Path: path, Key: "limit", Err: err}
	}

	creds := Credentials{
		ConsumerKey:    values["consumer_key"],
		ConsumerSecret: values["consumer_secret"],
		Account:        values["account"],
		Password:       values["password"],
		AccessTokenURL: values["access_token_url"],
		Limit:          limit,
		Blog:           values["blog"],
	}
	if err := creds.Validate(); err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return Credentials{}, err
	}
	return creds, nil
}
