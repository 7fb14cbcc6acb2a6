package config

import (
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// RedactURL replaces the password in a connection URL or MySQL DSN with "***".
// If the input cannot be parsed or has no password, it is returned unchanged.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		return redactDSN(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	// Replace the password inside the raw userinfo so the rest of the URL
	// keeps its original escaping.
	afterScheme := strings.Index(raw, "://") + len("://")

	atIdx := strings.Index(raw[afterScheme:], "@")
	if atIdx < 0 {
		return raw
	}

	userinfo := raw[afterScheme : afterScheme+atIdx]

	colonIdx := strings.Index(userinfo, ":")
	if colonIdx < 0 {
		return raw
	}

	return raw[:afterScheme] + userinfo[:colonIdx+1] + "***" + raw[afterScheme+atIdx:]
}

// redactDSN handles go-sql-driver DSNs such as user:pass@tcp(host:3306)/db.
func redactDSN(raw string) string {
	cfg, err := mysql.ParseDSN(raw)
	if err != nil || cfg.Passwd == "" {
		return raw
	}

	cfg.Passwd = "***"

	return cfg.FormatDSN()
}
