package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

// MakeConnStr builds a postgres URL from the database settings. Credentials
// are escaped, so they may contain any character.
func MakeConnStr(conf Database) (string, error) {
	host, err := commoncfg.LoadValueFromSourceRef(conf.Host)
	if err != nil {
		return "", fmt.Errorf("loading db host: %w", err)
	}

	user, err := commoncfg.LoadValueFromSourceRef(conf.User)
	if err != nil {
		return "", fmt.Errorf("loading db user: %w", err)
	}

	password, err := commoncfg.LoadValueFromSourceRef(conf.Password)
	if err != nil {
		return "", fmt.Errorf("loading db password: %w", err)
	}

	hostPort := string(host)
	if conf.Port != "" {
		hostPort = net.JoinHostPort(hostPort, conf.Port)
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(string(user), string(password)),
		Host:   hostPort,
		Path:   "/" + conf.Name,
	}

	return u.String(), nil
}
